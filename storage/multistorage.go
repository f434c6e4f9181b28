package storage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/ruteri/trex-suite-provisioning/interfaces"
)

// MultiStorageBackend fans stores out to every available backend and serves
// fetches from the first backend holding verified content.
type MultiStorageBackend struct {
	backends []interfaces.StorageBackend
	log      *slog.Logger
}

// NewMultiStorageBackend aggregates backends in priority order.
func NewMultiStorageBackend(backends []interfaces.StorageBackend, logger *slog.Logger) *MultiStorageBackend {
	if logger == nil {
		logger = slog.Default()
	}

	return &MultiStorageBackend{
		backends: backends,
		log:      logger,
	}
}

// Fetch tries each available backend in order. Content that does not hash to
// id is skipped so a corrupted replica cannot shadow a good one.
func (m *MultiStorageBackend) Fetch(ctx context.Context, id interfaces.ContentID, contentType interfaces.ContentType) ([]byte, error) {
	start := time.Now()
	var errs []error

	for _, backend := range m.backends {
		if !backend.Available(ctx) {
			m.log.Debug("Backend unavailable", slog.String("backend_name", backend.Name()))
			continue
		}

		data, err := backend.Fetch(ctx, id, contentType)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", backend.Name(), err))
			continue
		}

		if interfaces.ComputeID(data) != id {
			m.log.Warn("Backend returned content with mismatching hash",
				slog.String("backend_name", backend.Name()),
				slog.String("content_id", id.String()))
			errs = append(errs, fmt.Errorf("%s: %w", backend.Name(), interfaces.ErrContentMismatch))
			continue
		}

		m.log.Debug("Fetched content",
			slog.String("backend_name", backend.Name()),
			slog.String("content_id", id.String()),
			slog.Duration("duration", time.Since(start)))
		return data, nil
	}

	if len(errs) == 0 {
		return nil, interfaces.ErrBackendUnavailable
	}

	notFound := true
	for _, err := range errs {
		if !errors.Is(err, interfaces.ErrContentNotFound) {
			notFound = false
		}
	}
	if notFound {
		return nil, interfaces.ErrContentNotFound
	}

	return nil, fmt.Errorf("all backends failed to fetch %s: %w", id, errors.Join(errs...))
}

// Store writes to every available backend. It succeeds if at least one did.
func (m *MultiStorageBackend) Store(ctx context.Context, data []byte, contentType interfaces.ContentType) (interfaces.ContentID, error) {
	id := interfaces.ComputeID(data)
	stored := 0
	var errs []error

	for _, backend := range m.backends {
		if !backend.Available(ctx) {
			m.log.Debug("Backend unavailable", slog.String("backend_name", backend.Name()))
			continue
		}

		if _, err := backend.Store(ctx, data, contentType); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", backend.Name(), err))
			m.log.Warn("Failed to store to backend", slog.String("backend_name", backend.Name()), "err", err)
			continue
		}
		stored++
	}

	if stored == 0 {
		if len(errs) == 0 {
			return id, interfaces.ErrBackendUnavailable
		}
		return id, fmt.Errorf("all backends failed to store data: %w", errors.Join(errs...))
	}

	m.log.Info("Stored content",
		slog.String("content_id", id.String()),
		slog.String("content_type", contentType.String()),
		slog.Int("replicas", stored))

	return id, nil
}

// Available reports whether any backend is available.
func (m *MultiStorageBackend) Available(ctx context.Context) bool {
	for _, backend := range m.backends {
		if backend.Available(ctx) {
			return true
		}
	}
	return false
}

func (m *MultiStorageBackend) Name() string {
	return "multi-storage"
}

func (m *MultiStorageBackend) LocationURI() string {
	locations := make([]string, 0, len(m.backends))
	for _, backend := range m.backends {
		locations = append(locations, backend.LocationURI())
	}
	return "multi:[" + strings.Join(locations, ",") + "]"
}
