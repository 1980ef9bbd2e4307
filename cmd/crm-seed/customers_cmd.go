package main

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/go-faster/errors"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/KroNicalKODER/mini-crm-backend/internal/app"
	"github.com/KroNicalKODER/mini-crm-backend/internal/bus"
	"github.com/KroNicalKODER/mini-crm-backend/internal/config"
	"github.com/KroNicalKODER/mini-crm-backend/internal/domain"
	"github.com/KroNicalKODER/mini-crm-backend/internal/logging"
)

type customersOptions struct {
	Count  int
	Wipe   bool
	ViaBus bool
	Seed   uint64
}

func newCustomersCmd() *cobra.Command {
	var opts customersOptions

	cmd := &cobra.Command{
		Use:   "customers [--count 250] [--wipe] [--via-bus]",
		Short: "Generate fake customers and insert or publish them",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if opts.Count <= 0 {
				return errors.New("--count must be positive")
			}
			cfg, err := config.Parse()
			if err != nil {
				return err
			}
			log := logrus.NewEntry(logging.New(cfg.LogLevel, cfg.LogFormat)).WithField("service", "crm-seed")

			ctx, cancel := context.WithTimeout(cmd.Context(), 2*time.Minute)
			defer cancel()

			customers := generateCustomers(gofakeit.New(opts.Seed), opts.Count)
			if opts.ViaBus {
				return publishCustomers(ctx, cfg, log, customers)
			}
			return insertCustomers(ctx, cfg, log, customers, opts.Wipe)
		},
	}

	cmd.Flags().IntVar(&opts.Count, "count", 250, "number of customers to generate")
	cmd.Flags().BoolVar(&opts.Wipe, "wipe", true, "delete existing customers first (direct insert only)")
	cmd.Flags().BoolVar(&opts.ViaBus, "via-bus", false, "publish customer envelopes on data.ingest instead of inserting")
	cmd.Flags().Uint64Var(&opts.Seed, "seed", 0, "faker seed, 0 for random")

	return cmd
}

// generateCustomers builds n customers with distinct emails. Spends fall in
// [1000, 100000], visits in [1, 100] and the last visit in the past.
func generateCustomers(f *gofakeit.Faker, n int) []domain.Customer {
	out := make([]domain.Customer, 0, n)
	seen := make(map[string]struct{}, n)
	for len(out) < n {
		email := strings.ToLower(f.Email())
		if _, dup := seen[email]; dup {
			continue
		}
		seen[email] = struct{}{}
		out = append(out, domain.Customer{
			Name:        f.Username(),
			Email:       email,
			TotalSpends: float64(int64(f.Float64Range(1000, 100000)*100)) / 100,
			Visits:      int64(f.IntRange(1, 100)),
			LastVisit:   f.PastDate().UTC(),
		})
	}
	return out
}

func insertCustomers(ctx context.Context, cfg config.Config, log *logrus.Entry, customers []domain.Customer, wipe bool) error {
	st, closeStore, err := app.OpenStore(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer closeStore()

	if wipe {
		deleted, inserted, err := st.ReplaceCustomers(ctx, customers)
		if err != nil {
			return errors.Wrap(err, "replace customers")
		}
		log.WithFields(logrus.Fields{"deleted": deleted, "inserted": inserted}).Info("customer records seeded")
		return nil
	}
	n, err := st.InsertCustomers(ctx, customers)
	if err != nil {
		return errors.Wrap(err, "insert customers")
	}
	log.WithField("inserted", n).Info("customer records seeded")
	return nil
}

func publishCustomers(ctx context.Context, cfg config.Config, log *logrus.Entry, customers []domain.Customer) error {
	b, err := app.OpenBus(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer b.Close()

	for _, c := range customers {
		env, err := domain.Wrap(domain.KindCustomer, seedPayload(c), time.Now())
		if err != nil {
			return err
		}
		if err := bus.PublishEnvelope(ctx, b, env); err != nil {
			return err
		}
	}
	log.WithField("published", len(customers)).Info("customer envelopes published")
	return nil
}

// seedPayload is the request-API shape of a customer.
func seedPayload(c domain.Customer) json.RawMessage {
	b, _ := json.Marshal(map[string]any{
		"name":        c.Name,
		"email":       c.Email,
		"totalSpends": c.TotalSpends,
		"visits":      c.Visits,
		"lastVisit":   c.LastVisit.Format(time.RFC3339),
	})
	return b
}
