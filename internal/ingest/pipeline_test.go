package ingest

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/KroNicalKODER/mini-crm-backend/internal/bus"
	"github.com/KroNicalKODER/mini-crm-backend/internal/delivery"
	"github.com/KroNicalKODER/mini-crm-backend/internal/domain"
	"github.com/KroNicalKODER/mini-crm-backend/internal/storage/memstore"
)

func TestConsumerCampaignEndToEnd(t *testing.T) {
	t.Parallel()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	b := bus.NewMemory()
	st := memstore.New()
	consumer := NewConsumer(nil,
		NewCreationWorker(st, NewBusTrigger(b), Options{}),
		NewDeliveryWorker(st, delivery.NewSampler(9), Options{}),
	)

	runErr := make(chan error, 1)
	go func() { runErr <- consumer.Run(ctx, b) }()

	targets := make([]domain.Target, 20)
	for i := range targets {
		targets[i] = domain.Target{CustomerID: "c" + string(rune('A'+i)), CustomerEmail: string(rune('a'+i)) + "@example.com"}
	}
	body, err := json.Marshal(domain.CampaignPayload{Email: "owner@example.com", CustomerIDs: targets})
	require.NoError(t, err)

	// Publishing before the workers subscribe is lost, as on any at-most-once
	// bus, so publish until the campaign shows up.
	require.Eventually(t, func() bool {
		list, _ := st.FindCampaignsByEmail(ctx, "owner@example.com")
		if len(list) > 0 {
			return true
		}
		env := domain.NewEnvelope(domain.KindCampaign, body, time.Now())
		_ = bus.PublishEnvelope(ctx, b, env)
		return false
	}, 2*time.Second, 20*time.Millisecond)

	var campaign domain.Campaign
	require.Eventually(t, func() bool {
		list, _ := st.FindCampaignsByEmail(ctx, "owner@example.com")
		campaign = list[len(list)-1]
		for _, tg := range campaign.CustomerIDs {
			if tg.MailStatus == nil {
				return false
			}
		}
		return true
	}, 2*time.Second, 10*time.Millisecond)

	sent := 0
	ids := map[string]string{}
	for _, tg := range campaign.CustomerIDs {
		ids[tg.CustomerID] = tg.CustomerEmail
		if *tg.MailStatus {
			sent++
		}
	}
	require.Equal(t, delivery.DeliverCount(len(targets)), sent)
	require.Len(t, ids, len(targets))
	for _, tg := range targets {
		require.Equal(t, tg.CustomerEmail, ids[tg.CustomerID])
	}

	cancel()
	select {
	case err := <-runErr:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("consumer did not stop")
	}
}
