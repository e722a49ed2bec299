package registry

import (
	"context"
	"sync"

	"github.com/taxlien-online/taxlien-nft/internal/lien/models"
	"github.com/taxlien-online/taxlien-nft/pkg/platform/sentinel"
)

// InMemory holds the registry singleton behind a mutex. Execute works on a
// copy and commits on success, so a failed callback leaves the registry
// untouched.
type InMemory struct {
	mu       sync.Mutex
	registry *models.Registry
}

func NewInMemory() *InMemory {
	return &InMemory{}
}

func (s *InMemory) Create(_ context.Context, registry *models.Registry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.registry != nil {
		return sentinel.ErrConflict
	}
	clone := *registry
	s.registry = &clone
	return nil
}

func (s *InMemory) Get(_ context.Context) (*models.Registry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.registry == nil {
		return nil, sentinel.ErrNotFound
	}
	clone := *s.registry
	return &clone, nil
}

func (s *InMemory) Execute(ctx context.Context, fn func(ctx context.Context, registry *models.Registry) error) (*models.Registry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.registry == nil {
		return nil, sentinel.ErrNotFound
	}
	working := *s.registry
	if err := fn(ctx, &working); err != nil {
		return nil, err
	}
	s.registry = &working
	clone := working
	return &clone, nil
}
