package usecase

import (
	"context"
	"errors"
	"log/slog"
)

const (
	StoreConnected    = "connected"
	StoreDisconnected = "disconnected"
	statusHealthy     = "healthy"
	statusUnhealthy   = "unhealthy"
)

// ThreadStore is the key-value capability the service needs. Mappings are
// write-once: PutThreadIfAbsent must never replace a non-empty value, but an
// empty stored value counts as absent and is overwritten.
type ThreadStore interface {
	GetThread(ctx context.Context, identifier string) (string, bool, error)
	PutThreadIfAbsent(ctx context.Context, identifier, threadID string) (string, bool, error)
	Ping(ctx context.Context) error
}

type ThreadProvider interface {
	CreateThread(ctx context.Context) (string, error)
}

type ThreadService struct {
	store    ThreadStore
	provider ThreadProvider
	logger   *slog.Logger
}

type ThreadOutput struct {
	Identifier string
	ThreadID   string
}

type HealthOutput struct {
	Status string
	Store  string
}

func (h HealthOutput) Healthy() bool {
	return h.Status == statusHealthy
}

func NewThreadService(s ThreadStore, p ThreadProvider, logger *slog.Logger) (*ThreadService, error) {
	if s == nil {
		return nil, errors.New("usecase: thread store must not be nil")
	}
	if p == nil {
		return nil, errors.New("usecase: thread provider must not be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &ThreadService{store: s, provider: p, logger: logger}, nil
}

// GetOrCreate returns the thread mapped to identifier, asking the provider for
// a new one on a miss. Concurrent misses for the same identifier may each
// create a provider thread, but only the first stored one is ever returned.
// An empty stored value is treated as a miss.
func (s *ThreadService) GetOrCreate(ctx context.Context, identifier string) (ThreadOutput, error) {
	existing, found, err := s.store.GetThread(ctx, identifier)
	if err != nil {
		return ThreadOutput{}, newError(ErrorStore, "store_read_error", err)
	}
	if found && existing != "" {
		return ThreadOutput{Identifier: identifier, ThreadID: existing}, nil
	}

	threadID, err := s.provider.CreateThread(ctx)
	if err != nil {
		return ThreadOutput{}, newError(ErrorProvider, "provider_create_error", err)
	}
	if threadID == "" {
		return ThreadOutput{}, newError(ErrorProvider, "provider_empty_thread_id", nil)
	}

	stored, created, err := s.store.PutThreadIfAbsent(ctx, identifier, threadID)
	if err != nil {
		return ThreadOutput{}, newError(ErrorStore, "store_write_error", err)
	}
	if !created {
		s.logger.WarnContext(ctx, "thread mapping already existed, discarding new provider thread",
			"identifier", identifier, "stored_thread", stored, "orphaned_thread", threadID)
		return ThreadOutput{Identifier: identifier, ThreadID: stored}, nil
	}

	s.logger.InfoContext(ctx, "created thread mapping", "identifier", identifier, "thread", threadID)
	return ThreadOutput{Identifier: identifier, ThreadID: threadID}, nil
}

// Health reports store connectivity. It never fails; an unreachable store is
// reported in the output.
func (s *ThreadService) Health(ctx context.Context) HealthOutput {
	if err := s.store.Ping(ctx); err != nil {
		s.logger.WarnContext(ctx, "store ping failed", "err", err)
		return HealthOutput{Status: statusUnhealthy, Store: StoreDisconnected}
	}
	return HealthOutput{Status: statusHealthy, Store: StoreConnected}
}
