package credential

import (
	"context"
	"sync"
)

type StubRepository struct {
	mu   sync.Mutex
	rows map[string]StoredCredential
}

func NewStubRepository() *StubRepository {
	return &StubRepository{rows: map[string]StoredCredential{}}
}

func (s *StubRepository) Save(ctx context.Context, c StoredCredential) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rows[c.UserId] = c
	return nil
}

func (s *StubRepository) Get(ctx context.Context, userId string) (StoredCredential, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.rows[userId]
	if !ok {
		return StoredCredential{}, ErrNotStored
	}
	return c, nil
}

func (s *StubRepository) Delete(ctx context.Context, userId string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.rows, userId)
	return nil
}
