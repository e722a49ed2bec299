package lien

import (
	"context"
	"sort"
	"sync"

	"github.com/taxlien-online/taxlien-nft/internal/lien/models"
	"github.com/taxlien-online/taxlien-nft/internal/lien/store"
	id "github.com/taxlien-online/taxlien-nft/pkg/domain"
	"github.com/taxlien-online/taxlien-nft/pkg/platform/sentinel"
)

// defaultPageLimit caps unpaginated listings.
const defaultPageLimit = 20

// InMemory stores lien records in a map. One mutex serializes all access;
// Execute and Settle run their callbacks inside the critical section so
// validate-then-mutate and guard-then-destroy are atomic.
type InMemory struct {
	mu      sync.RWMutex
	records map[id.LienID]*models.LienRecord
}

func NewInMemory() *InMemory {
	return &InMemory{records: make(map[id.LienID]*models.LienRecord)}
}

func (s *InMemory) Create(_ context.Context, record *models.LienRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.records[record.ID]; exists {
		return sentinel.ErrConflict
	}
	clone := *record
	s.records[record.ID] = &clone
	return nil
}

func (s *InMemory) Get(_ context.Context, lienID id.LienID) (*models.LienRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	record, ok := s.records[lienID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	clone := *record
	return &clone, nil
}

func (s *InMemory) List(_ context.Context, filter store.ListFilter, page store.Page) ([]*models.LienRecord, int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var matched []*models.LienRecord
	for _, record := range s.records {
		if matches(record, filter) {
			matched = append(matched, record)
		}
	}
	sort.Slice(matched, func(i, j int) bool { return matched[i].ID < matched[j].ID })

	total := len(matched)
	limit := page.Limit
	if limit <= 0 {
		limit = defaultPageLimit
	}
	offset := page.Offset
	if offset > total {
		offset = total
	}
	end := offset + limit
	if end > total {
		end = total
	}

	out := make([]*models.LienRecord, 0, end-offset)
	for _, record := range matched[offset:end] {
		clone := *record
		out = append(out, &clone)
	}
	return out, total, nil
}

func (s *InMemory) Execute(_ context.Context, lienID id.LienID, validate func(*models.LienRecord) error, apply func(*models.LienRecord)) (*models.LienRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	record, ok := s.records[lienID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	if err := validate(record); err != nil {
		return nil, err
	}
	apply(record)
	clone := *record
	return &clone, nil
}

func (s *InMemory) Settle(_ context.Context, lienID id.LienID, fn func(*models.LienRecord) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	record, ok := s.records[lienID]
	if !ok {
		return sentinel.ErrNotFound
	}
	clone := *record
	if err := fn(&clone); err != nil {
		return err
	}
	delete(s.records, lienID)
	return nil
}

func (s *InMemory) Delete(_ context.Context, lienID id.LienID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.records[lienID]; !ok {
		return sentinel.ErrNotFound
	}
	delete(s.records, lienID)
	return nil
}

func matches(record *models.LienRecord, filter store.ListFilter) bool {
	if filter.Status != nil && record.Status != *filter.Status {
		return false
	}
	if filter.State != "" && record.State != filter.State {
		return false
	}
	if filter.County != "" && record.County != filter.County {
		return false
	}
	if filter.MinAPR != 0 && record.APR < filter.MinAPR {
		return false
	}
	if filter.MaxAPR != 0 && record.APR > filter.MaxAPR {
		return false
	}
	return true
}
