/*
Package httpserver serves the status of a running deployment.

A full suite deployment submits dozens of transactions, each waiting for a
confirmation. The status server lets operators and supervisors follow a run
without parsing logs.

# Endpoints

  - GET /livez - Liveness check
  - GET /readyz - Ready once the run has finished, successfully or not
  - GET /api/status - Run progress and the address table accumulated so far
  - GET /metrics - Prometheus metrics
  - /debug/pprof - Profiling, when enabled

# Example Usage

	progress := deployer.NewProgress()
	srv, err := httpserver.New(&httpserver.HTTPServerConfig{
		ListenAddr: ":8080",
		Log:        logger,
		Gatherer:   registry,
	}, progress)
	if err != nil {
		return err
	}
	srv.RunInBackground()
	defer srv.Shutdown()
*/
package httpserver
