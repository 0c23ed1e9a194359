package memory

import (
	"context"
	"sync"
	"time"

	"github.com/anonto42/meta-v/backend/internal/models"
	"github.com/anonto42/meta-v/backend/internal/repositories"
)

// Repairs implements repositories.RepairRepository.
type Repairs struct {
	mu      sync.Mutex
	nextID  uint
	records []models.RepairRecord
}

func NewRepairs() *Repairs {
	return &Repairs{}
}

func (s *Repairs) RecordRepair(_ context.Context, rec *models.RepairRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextID++
	rec.ID = s.nextID
	rec.CreatedAt = time.Now()
	rec.UpdatedAt = rec.CreatedAt
	s.records = append(s.records, *rec)
	return nil
}

func (s *Repairs) ListUnresolved(_ context.Context) ([]models.RepairRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := []models.RepairRecord{}
	for _, r := range s.records {
		if r.ResolvedAt == nil {
			out = append(out, r)
		}
	}
	return out, nil
}

func (s *Repairs) MarkResolved(_ context.Context, id uint) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.records {
		if s.records[i].ID == id {
			now := time.Now()
			s.records[i].ResolvedAt = &now
			return nil
		}
	}
	return repositories.ErrNotFound
}
