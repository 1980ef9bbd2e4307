package ingest

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/KroNicalKODER/mini-crm-backend/internal/bus"
	"github.com/KroNicalKODER/mini-crm-backend/internal/domain"
	"github.com/KroNicalKODER/mini-crm-backend/internal/logging"
)

// Trigger modes.
const (
	TriggerBus  = "bus"
	TriggerHTTP = "http"
)

// DeliveryTrigger starts stage two for a persisted campaign.
type DeliveryTrigger interface {
	Trigger(ctx context.Context, c domain.Campaign) error
}

// BusTrigger publishes a campaign-email envelope straight to data.ingest2.
type BusTrigger struct {
	pub bus.Publisher
	now func() time.Time
}

func NewBusTrigger(pub bus.Publisher) *BusTrigger {
	return &BusTrigger{pub: pub, now: time.Now}
}

func (t *BusTrigger) Trigger(ctx context.Context, c domain.Campaign) error {
	env, err := domain.Wrap(domain.KindCampaignEmail, c, t.now())
	if err != nil {
		return &domain.TransportError{Op: "wrap campaign-email", Err: err}
	}
	return bus.PublishEnvelope(ctx, t.pub, env)
}

// HTTPTrigger posts the campaign to the request API, which republishes it.
type HTTPTrigger struct {
	client *http.Client
	url    string
	log    *logrus.Entry
}

func NewHTTPTrigger(client *http.Client, url string, log *logrus.Entry) *HTTPTrigger {
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	if log == nil {
		log = logging.Nop()
	}
	return &HTTPTrigger{client: client, url: url, log: log}
}

func (t *HTTPTrigger) Trigger(ctx context.Context, c domain.Campaign) error {
	body, err := json.Marshal(c)
	if err != nil {
		return &domain.TransportError{Op: "encode campaign", Err: err}
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.url, bytes.NewReader(body))
	if err != nil {
		return &domain.TransportError{Op: "build request", Err: err}
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.client.Do(req)
	if err != nil {
		return &domain.TransportError{Op: "POST " + t.url, Err: err}
	}
	defer resp.Body.Close()
	reply, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))

	t.log.WithFields(logrus.Fields{
		"campaign_id": c.ID,
		"status":      resp.StatusCode,
		"response":    string(reply),
	}).Info("campaign email trigger answered")

	if resp.StatusCode >= http.StatusMultipleChoices {
		return &domain.TransportError{Op: "POST " + t.url, Err: fmt.Errorf("status %d", resp.StatusCode)}
	}
	return nil
}
