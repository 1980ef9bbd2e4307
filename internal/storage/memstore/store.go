// Package memstore is an in-process document store with the same semantics
// as the Postgres store. Used for local runs without a database and in tests.
package memstore

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"

	"github.com/KroNicalKODER/mini-crm-backend/internal/domain"
)

type Store struct {
	mu        sync.RWMutex
	customers []domain.Customer
	emails    map[string]struct{}
	orders    []domain.Order
	campaigns map[string]*domain.Campaign
	now       func() time.Time
}

func New() *Store {
	return &Store{
		emails:    map[string]struct{}{},
		campaigns: map[string]*domain.Campaign{},
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// WithClock replaces the timestamp source.
func (s *Store) WithClock(now func() time.Time) *Store {
	s.now = now
	return s
}

func (s *Store) Ready(context.Context) error { return nil }

func (s *Store) InsertCustomer(ctx context.Context, c domain.Customer) (domain.Customer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.insertCustomer(c)
}

func (s *Store) insertCustomer(c domain.Customer) (domain.Customer, error) {
	if _, dup := s.emails[c.Email]; dup {
		return domain.Customer{}, &domain.PersistenceError{
			Op:  "insert customer",
			Err: errors.Wrapf(domain.ErrDuplicate, "email %s", c.Email),
		}
	}
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	now := s.now()
	c.CreatedAt, c.UpdatedAt = now, now
	s.emails[c.Email] = struct{}{}
	s.customers = append(s.customers, c)
	return c, nil
}

// InsertCustomers is all-or-nothing like the single-statement SQL insert.
func (s *Store) InsertCustomers(ctx context.Context, items []domain.Customer) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	seen := map[string]struct{}{}
	for _, c := range items {
		_, dup := s.emails[c.Email]
		_, again := seen[c.Email]
		if dup || again {
			return 0, &domain.PersistenceError{
				Op:  "insert customers",
				Err: errors.Wrapf(domain.ErrDuplicate, "email %s", c.Email),
			}
		}
		seen[c.Email] = struct{}{}
	}
	for _, c := range items {
		if _, err := s.insertCustomer(c); err != nil {
			return 0, err
		}
	}
	return int64(len(items)), nil
}

// ReplaceCustomers swaps the whole collection for items. A duplicate email
// within items leaves the current customers untouched.
func (s *Store) ReplaceCustomers(ctx context.Context, items []domain.Customer) (deleted, inserted int64, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	seen := map[string]struct{}{}
	for _, c := range items {
		if _, dup := seen[c.Email]; dup {
			return 0, 0, &domain.PersistenceError{
				Op:  "replace customers",
				Err: errors.Wrapf(domain.ErrDuplicate, "email %s", c.Email),
			}
		}
		seen[c.Email] = struct{}{}
	}
	deleted = int64(len(s.customers))
	s.customers = nil
	s.emails = map[string]struct{}{}
	for _, c := range items {
		if _, err := s.insertCustomer(c); err != nil {
			return 0, 0, err
		}
	}
	return deleted, int64(len(items)), nil
}

func (s *Store) FilterCustomers(ctx context.Context, f domain.AudienceFilter) ([]domain.Customer, error) {
	expr := f.Expr()
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := []domain.Customer{}
	for _, c := range s.customers {
		if domain.Match(expr, c) {
			out = append(out, c)
		}
	}
	return out, nil
}

// Customers returns a snapshot of all stored customers.
func (s *Store) Customers() []domain.Customer {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]domain.Customer(nil), s.customers...)
}

func (s *Store) InsertOrder(ctx context.Context, o domain.Order) (domain.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if o.ID == "" {
		o.ID = uuid.NewString()
	}
	now := s.now()
	o.CreatedAt, o.UpdatedAt = now, now
	s.orders = append(s.orders, o)
	return o, nil
}

// Orders returns a snapshot of all stored orders.
func (s *Store) Orders() []domain.Order {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]domain.Order(nil), s.orders...)
}

func (s *Store) InsertCampaign(ctx context.Context, c domain.Campaign) (domain.Campaign, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	now := s.now()
	c.CreatedAt, c.UpdatedAt = now, now
	c.CustomerIDs = cloneTargets(c.CustomerIDs)
	stored := c
	s.campaigns[c.ID] = &stored
	return cloneCampaign(stored), nil
}

func (s *Store) FindCampaignsByEmail(ctx context.Context, email string) ([]domain.Campaign, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := []domain.Campaign{}
	for _, c := range s.campaigns {
		if c.Email == email {
			out = append(out, cloneCampaign(*c))
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

// Campaign returns a copy of the campaign with the given id.
func (s *Store) Campaign(id string) (domain.Campaign, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.campaigns[id]
	if !ok {
		return domain.Campaign{}, false
	}
	return cloneCampaign(*c), true
}

func (s *Store) ReplaceCampaignTargets(ctx context.Context, id string, targets []domain.Target) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.campaigns[id]
	if !ok {
		return &domain.PersistenceError{
			Op:  "replace campaign targets",
			Err: errors.Wrapf(domain.ErrNotFound, "campaign %s", id),
		}
	}
	c.CustomerIDs = cloneTargets(targets)
	c.UpdatedAt = s.now()
	return nil
}

func cloneCampaign(c domain.Campaign) domain.Campaign {
	c.CustomerIDs = cloneTargets(c.CustomerIDs)
	return c
}

func cloneTargets(in []domain.Target) []domain.Target {
	out := make([]domain.Target, len(in))
	for i, t := range in {
		if t.MailStatus != nil {
			v := *t.MailStatus
			t.MailStatus = &v
		}
		out[i] = t
	}
	return out
}
