package engine

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/vkuznetsov/todolist/internal/store"
)

// Registry owns one Engine per authenticated owner. Engines are built
// and initialized lazily on first use and discarded on sign-out, which
// bounds memory to the set of active sessions.
type Registry struct {
	store  store.Store
	logger *zap.Logger

	mu      sync.Mutex
	engines map[string]*Engine
}

// NewRegistry creates a Registry whose engines persist through the
// given store.
func NewRegistry(s store.Store, logger *zap.Logger) *Registry {
	return &Registry{
		store:   s,
		logger:  logger,
		engines: make(map[string]*Engine),
	}
}

// Acquire returns the engine for ownerID, creating and initializing
// it on first use.
func (r *Registry) Acquire(ctx context.Context, ownerID string) (*Engine, error) {
	if ownerID == "" {
		return nil, ErrEmptyOwner
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if eng, exists := r.engines[ownerID]; exists {
		return eng, nil
	}

	eng := New(r.store, r.logger)
	if err := eng.Initialize(ctx, ownerID); err != nil {
		return nil, err
	}

	r.engines[ownerID] = eng
	r.logger.Info("session started", zap.String("owner_id", ownerID))

	return eng, nil
}

// Release discards the engine for ownerID. The in-memory collection is
// dropped; durable state is untouched. Releasing an unknown owner is a
// no-op.
func (r *Registry) Release(ownerID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.engines[ownerID]; exists {
		delete(r.engines, ownerID)
		r.logger.Info("session ended", zap.String("owner_id", ownerID))
	}
}

// Len reports the number of active sessions.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	return len(r.engines)
}
