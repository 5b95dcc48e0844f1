package cart

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"storefront/internal/domain"
	"storefront/internal/logging"
	"storefront/internal/pricing"
	"storefront/internal/storage"
)

type kvStore interface {
	Get(ctx context.Context, session, key string) (string, error)
	Set(ctx context.Context, session, key, value string, ttl time.Duration) error
}

// Service keeps each session's cart as a flat sequence of product ids, one
// occurrence per unit, persisted as a JSON array under the cart key.
type Service struct {
	store  kvStore
	logger *zap.Logger
	locks  sync.Map // session -> *sync.Mutex
}

func New(store kvStore, logger *zap.Logger) *Service {
	return &Service{store: store, logger: logging.OrNop(logger)}
}

func (s *Service) lock(session string) func() {
	v, _ := s.locks.LoadOrStore(session, &sync.Mutex{})
	mu := v.(*sync.Mutex)
	mu.Lock()
	return mu.Unlock
}

// Items returns the flat id sequence.
func (s *Service) Items(ctx context.Context, session string) ([]int64, error) {
	return s.load(ctx, session)
}

func (s *Service) Entries(ctx context.Context, session string) ([]domain.CartEntry, error) {
	ids, err := s.load(ctx, session)
	if err != nil {
		return nil, err
	}
	return pricing.Group(ids), nil
}

// Count is the total number of units, not distinct products.
func (s *Service) Count(ctx context.Context, session string) (int, error) {
	ids, err := s.load(ctx, session)
	if err != nil {
		return 0, err
	}
	return len(ids), nil
}

// Add appends one unit of id. The catalog is not consulted.
func (s *Service) Add(ctx context.Context, session string, id int64) ([]int64, error) {
	return s.mutate(ctx, session, func(ids []int64) []int64 {
		return append(ids, id)
	})
}

// Remove drops every unit of id.
func (s *Service) Remove(ctx context.Context, session string, id int64) ([]int64, error) {
	return s.mutate(ctx, session, func(ids []int64) []int64 {
		return without(ids, id, -1)
	})
}

// UpdateQuantity makes id occur exactly n times. Extra units are appended at
// the end; surplus units are removed starting from the earliest. n <= 0
// removes the line.
func (s *Service) UpdateQuantity(ctx context.Context, session string, id int64, n int) ([]int64, error) {
	return s.mutate(ctx, session, func(ids []int64) []int64 {
		if n <= 0 {
			return without(ids, id, -1)
		}
		current := 0
		for _, v := range ids {
			if v == id {
				current++
			}
		}
		diff := n - current
		switch {
		case diff > 0:
			for i := 0; i < diff; i++ {
				ids = append(ids, id)
			}
			return ids
		case diff < 0:
			return without(ids, id, -diff)
		}
		return ids
	})
}

func (s *Service) Clear(ctx context.Context, session string) error {
	_, err := s.mutate(ctx, session, func([]int64) []int64 { return []int64{} })
	return err
}

// Replace overwrites the cart wholesale.
func (s *Service) Replace(ctx context.Context, session string, ids []int64) error {
	cp := append([]int64{}, ids...)
	_, err := s.mutate(ctx, session, func([]int64) []int64 { return cp })
	return err
}

func (s *Service) mutate(ctx context.Context, session string, fn func([]int64) []int64) ([]int64, error) {
	unlock := s.lock(session)
	defer unlock()

	ids, err := s.load(ctx, session)
	if err != nil {
		return nil, err
	}
	next := fn(ids)
	if next == nil {
		next = []int64{}
	}
	buf, err := json.Marshal(next)
	if err != nil {
		return nil, fmt.Errorf("encode cart: %w", err)
	}
	if err := s.store.Set(ctx, session, storage.KeyCart, string(buf), 0); err != nil {
		return nil, fmt.Errorf("persist cart: %w", err)
	}
	return next, nil
}

// load treats an absent or unreadable cart as empty.
func (s *Service) load(ctx context.Context, session string) ([]int64, error) {
	raw, err := s.store.Get(ctx, session, storage.KeyCart)
	if errors.Is(err, storage.ErrNotFound) {
		return []int64{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load cart: %w", err)
	}
	var ids []int64
	if err := json.Unmarshal([]byte(raw), &ids); err != nil {
		s.logger.Warn("discarding unreadable cart", zap.String("session", session), zap.Error(err))
		return []int64{}, nil
	}
	if ids == nil {
		ids = []int64{}
	}
	return ids, nil
}

// without removes up to limit occurrences of id (all when limit < 0),
// keeping the order of everything else.
func without(ids []int64, id int64, limit int) []int64 {
	out := make([]int64, 0, len(ids))
	removed := 0
	for _, v := range ids {
		if v == id && (limit < 0 || removed < limit) {
			removed++
			continue
		}
		out = append(out, v)
	}
	return out
}
