package postgres

import (
	"context"
	"encoding/json"

	"github.com/go-faster/errors"
	"github.com/google/uuid"

	"github.com/KroNicalKODER/mini-crm-backend/internal/domain"
)

func (s *Store) InsertOrder(ctx context.Context, o domain.Order) (domain.Order, error) {
	if o.ID == "" {
		o.ID = uuid.NewString()
	}
	now := s.now()
	o.CreatedAt, o.UpdatedAt = now, now

	_, err := s.db.Pool.Exec(ctx,
		`INSERT INTO orders (id, customer_id, amount, date, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		o.ID, o.CustomerID, o.Amount, o.Date, o.CreatedAt, o.UpdatedAt)
	if err != nil {
		return domain.Order{}, storeErr("insert order", err)
	}
	return o, nil
}

func (s *Store) InsertCampaign(ctx context.Context, c domain.Campaign) (domain.Campaign, error) {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	if c.CustomerIDs == nil {
		c.CustomerIDs = []domain.Target{}
	}
	now := s.now()
	c.CreatedAt, c.UpdatedAt = now, now

	targets, err := json.Marshal(c.CustomerIDs)
	if err != nil {
		return domain.Campaign{}, &domain.PersistenceError{Op: "encode targets", Err: err}
	}
	_, err = s.db.Pool.Exec(ctx,
		`INSERT INTO campaigns (id, email, customer_ids, created_at, updated_at)
		 VALUES ($1, $2, $3::jsonb, $4, $5)`,
		c.ID, c.Email, string(targets), c.CreatedAt, c.UpdatedAt)
	if err != nil {
		return domain.Campaign{}, storeErr("insert campaign", err)
	}
	return c, nil
}

// FindCampaignsByEmail returns the owner's campaigns, newest first.
func (s *Store) FindCampaignsByEmail(ctx context.Context, email string) ([]domain.Campaign, error) {
	rows, err := s.db.Pool.Query(ctx,
		`SELECT id, email, customer_ids, created_at, updated_at
		 FROM campaigns WHERE email = $1 ORDER BY created_at DESC`, email)
	if err != nil {
		return nil, storeErr("find campaigns", err)
	}
	defer rows.Close()

	out := []domain.Campaign{}
	for rows.Next() {
		var (
			c   domain.Campaign
			raw []byte
		)
		if err := rows.Scan(&c.ID, &c.Email, &raw, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, storeErr("scan campaign", err)
		}
		if err := json.Unmarshal(raw, &c.CustomerIDs); err != nil {
			return nil, storeErr("decode targets", err)
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, storeErr("find campaigns", err)
	}
	return out, nil
}

// ReplaceCampaignTargets overwrites the whole customerIds field.
func (s *Store) ReplaceCampaignTargets(ctx context.Context, id string, targets []domain.Target) error {
	if targets == nil {
		targets = []domain.Target{}
	}
	b, err := json.Marshal(targets)
	if err != nil {
		return &domain.PersistenceError{Op: "encode targets", Err: err}
	}
	ct, err := s.db.Pool.Exec(ctx,
		`UPDATE campaigns SET customer_ids = $2::jsonb, updated_at = $3 WHERE id = $1`,
		id, string(b), s.now())
	if err != nil {
		return storeErr("replace campaign targets", err)
	}
	if ct.RowsAffected() == 0 {
		return &domain.PersistenceError{Op: "replace campaign targets", Err: errors.Wrapf(domain.ErrNotFound, "campaign %s", id)}
	}
	return nil
}
