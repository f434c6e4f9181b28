package deployer

import (
	"context"
	"log/slog"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ruteri/trex-suite-provisioning/contracts"
	"github.com/ruteri/trex-suite-provisioning/interfaces"
)

// Guard checks whether a factory already deployed a suite for a salt.
type Guard struct {
	rt *Runtime
}

func NewGuard(rt *Runtime) *Guard {
	return &Guard{rt: rt}
}

// CheckExisting returns the token registered under salt on factory and
// whether it is set. A failed query is logged and treated as no suite, so a
// broken read path never blocks a new deployment.
func (g *Guard) CheckExisting(ctx context.Context, factory common.Address, salt interfaces.DeploymentSalt) (common.Address, bool) {
	token, err := g.rt.queryAddress(ctx, factory, contracts.TREXFactory, "getToken", salt.String())
	if err != nil {
		g.rt.Log.Warn("Existing suite lookup failed, assuming none",
			slog.String("factory", factory.Hex()),
			slog.String("salt", salt.String()),
			"err", err)
		return common.Address{}, false
	}
	if token == (common.Address{}) {
		return common.Address{}, false
	}
	return token, true
}
