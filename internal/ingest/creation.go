package ingest

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/sirupsen/logrus"

	"github.com/KroNicalKODER/mini-crm-backend/internal/domain"
)

// CreationStore persists what arrives on the creation topic.
type CreationStore interface {
	InsertCustomer(ctx context.Context, c domain.Customer) (domain.Customer, error)
	InsertCampaign(ctx context.Context, c domain.Campaign) (domain.Campaign, error)
}

// NewCreationWorker consumes customer and campaign envelopes from
// data.ingest. A stored campaign is handed to trigger for stage two.
func NewCreationWorker(store CreationStore, trigger DeliveryTrigger, opts Options) *Worker {
	opts.setDefaults()
	h := &creationHandler{
		store:   store,
		trigger: trigger,
		log:     opts.Logger.WithField("worker", "creation"),
	}
	return newWorker("creation", domain.TopicIngest, h, opts)
}

type creationHandler struct {
	store   CreationStore
	trigger DeliveryTrigger
	log     *logrus.Entry
}

func (h *creationHandler) Handle(ctx context.Context, ev domain.Event) error {
	switch ev := ev.(type) {
	case domain.CustomerCreated:
		return h.customer(ctx, ev.Payload)
	case domain.CampaignCreated:
		return h.campaign(ctx, ev.Payload)
	case domain.OrderCreated, domain.CampaignEmailRequested:
		return errIgnored
	default:
		return errors.Errorf("unexpected event %T", ev)
	}
}

func (h *creationHandler) customer(ctx context.Context, p domain.CustomerPayload) error {
	if err := domain.ValidateCustomer(&p); err != nil {
		return err
	}
	c, err := h.store.InsertCustomer(ctx, p.Customer())
	if err != nil {
		return err
	}
	h.log.WithFields(logrus.Fields{"customer_id": c.ID, "email": c.Email}).Info("customer saved")
	return nil
}

// campaign persists first; a trigger failure is logged and the stored
// campaign stays as is.
func (h *creationHandler) campaign(ctx context.Context, p domain.CampaignPayload) error {
	if err := domain.ValidateCampaign(&p); err != nil {
		return err
	}
	c, err := h.store.InsertCampaign(ctx, p.Campaign())
	if err != nil {
		return err
	}
	log := h.log.WithFields(logrus.Fields{"campaign_id": c.ID, "targets": len(c.CustomerIDs)})
	log.Info("campaign saved")

	if err := h.trigger.Trigger(ctx, c); err != nil {
		log.WithError(err).Error("delivery trigger failed")
		return nil
	}
	log.Debug("delivery triggered")
	return nil
}
