package ingest

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/sirupsen/logrus"

	"github.com/KroNicalKODER/mini-crm-backend/internal/delivery"
	"github.com/KroNicalKODER/mini-crm-backend/internal/domain"
)

// DeliveryStore persists what arrives on the order/delivery topic.
type DeliveryStore interface {
	InsertOrder(ctx context.Context, o domain.Order) (domain.Order, error)
	ReplaceCampaignTargets(ctx context.Context, id string, targets []domain.Target) error
}

// NewDeliveryWorker consumes order and campaign-email envelopes from
// data.ingest2.
func NewDeliveryWorker(store DeliveryStore, sampler *delivery.Sampler, opts Options) *Worker {
	opts.setDefaults()
	h := &deliveryHandler{
		store:   store,
		sampler: sampler,
		log:     opts.Logger.WithField("worker", "delivery"),
		m:       getMetrics(),
	}
	return newWorker("delivery", domain.TopicIngest2, h, opts)
}

type deliveryHandler struct {
	store   DeliveryStore
	sampler *delivery.Sampler
	log     *logrus.Entry
	m       *metrics
}

func (h *deliveryHandler) Handle(ctx context.Context, ev domain.Event) error {
	switch ev := ev.(type) {
	case domain.OrderCreated:
		return h.order(ctx, ev.Payload)
	case domain.CampaignEmailRequested:
		return h.campaignEmail(ctx, ev.Campaign)
	case domain.CustomerCreated, domain.CampaignCreated:
		return errIgnored
	default:
		return errors.Errorf("unexpected event %T", ev)
	}
}

func (h *deliveryHandler) order(ctx context.Context, p domain.OrderPayload) error {
	if err := domain.ValidateOrder(&p); err != nil {
		return err
	}
	o, err := h.store.InsertOrder(ctx, p.Order())
	if err != nil {
		return err
	}
	h.log.WithFields(logrus.Fields{"order_id": o.ID, "customer_id": o.CustomerID}).Info("order saved")
	return nil
}

// campaignEmail relabels every target and replaces the stored list in one
// update. Running it twice may pick a different subset.
func (h *deliveryHandler) campaignEmail(ctx context.Context, c domain.Campaign) error {
	if c.ID == "" {
		return &domain.ValidationError{
			Kind:   domain.KindCampaignEmail,
			Fields: []domain.FieldError{{Field: "_id", Msg: "required"}},
		}
	}
	targets := h.sampler.Sample(c.CustomerIDs)
	if err := h.store.ReplaceCampaignTargets(ctx, c.ID, targets); err != nil {
		return err
	}

	sent := delivery.DeliverCount(len(targets))
	h.m.delivered.WithLabelValues("delivered").Add(float64(sent))
	h.m.delivered.WithLabelValues("not_delivered").Add(float64(len(targets) - sent))
	h.log.WithFields(logrus.Fields{
		"campaign_id": c.ID,
		"targets":     len(targets),
		"delivered":   sent,
	}).Info("campaign delivery statuses saved")
	return nil
}
