package transporthttp

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/go-faster/errors"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"
	"github.com/sirupsen/logrus"
	"github.com/ulule/limiter/v3"

	"github.com/KroNicalKODER/mini-crm-backend/internal/bus"
	"github.com/KroNicalKODER/mini-crm-backend/internal/config"
	"github.com/KroNicalKODER/mini-crm-backend/internal/domain"
	"github.com/KroNicalKODER/mini-crm-backend/internal/logging"
)

// Store is the read side the API queries directly.
type Store interface {
	Ready(ctx context.Context) error
	FindCampaignsByEmail(ctx context.Context, email string) ([]domain.Campaign, error)
	FilterCustomers(ctx context.Context, f domain.AudienceFilter) ([]domain.Customer, error)
}

type ServerDeps struct {
	Cfg     config.Config
	Bus     bus.Publisher
	Store   Store
	Limiter *limiter.Limiter
	Log     *logrus.Entry
	Now     func() time.Time
}

func (d *ServerDeps) logger() *logrus.Entry {
	if d.Log == nil {
		return logging.Nop()
	}
	return d.Log
}

func (d *ServerDeps) now() time.Time {
	if d.Now == nil {
		return time.Now().UTC()
	}
	return d.Now()
}

// --- Health ---

func (d *ServerDeps) HandleHealthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (d *ServerDeps) HandleReadyz(w http.ResponseWriter, r *http.Request) {
	if err := d.Store.Ready(r.Context()); err != nil {
		WriteProblem(w, http.StatusServiceUnavailable, "not ready", "document store not reachable", nil)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

// --- Publishing ---

// publishRoute wraps the raw body as an envelope of one kind. The body is not
// validated beyond being JSON; the workers own validation.
type publishRoute struct {
	kind    domain.Kind
	ack     string
	failure string
}

var (
	customerRoute      = publishRoute{domain.KindCustomer, "Customer data received and being processed", "An error occurred while processing customer data"}
	orderRoute         = publishRoute{domain.KindOrder, "Order data received and being processed on data.ingest2", "An error occurred while processing order data"}
	campaignRoute      = publishRoute{domain.KindCampaign, "New campaign will be formed soon", "An error occurred while creating the campaign"}
	campaignEmailRoute = publishRoute{domain.KindCampaignEmail, "Emails will be sent soon", "An error occurred while scheduling campaign emails"}
)

func (d *ServerDeps) HandlePublish(rt publishRoute) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		defer DrainBody(r)
		body, err := io.ReadAll(r.Body)
		if err != nil {
			var tooBig *http.MaxBytesError
			if errors.As(err, &tooBig) {
				WriteProblem(w, http.StatusRequestEntityTooLarge, "payload too large", err.Error(), nil)
				return
			}
			WriteProblem(w, http.StatusBadRequest, "invalid body", err.Error(), nil)
			return
		}
		if !json.Valid(body) {
			WriteProblem(w, http.StatusBadRequest, "invalid json", "request body is not valid JSON", nil)
			return
		}

		env := domain.NewEnvelope(rt.kind, body, d.now())
		topic := rt.kind.Topic()
		log := d.logger().WithFields(logrus.Fields{"kind": rt.kind, "topic": topic, "envelope_id": env.ID})

		if err := bus.PublishEnvelope(r.Context(), d.Bus, env); err != nil {
			publishedTotal().WithLabelValues(topic, string(rt.kind), "error").Inc()
			log.WithError(err).Error("publish failed")
			WriteProblem(w, http.StatusInternalServerError, "publish failed", rt.failure, nil)
			return
		}
		publishedTotal().WithLabelValues(topic, string(rt.kind), "ok").Inc()
		log.Debug("published")
		writeJSON(w, http.StatusOK, map[string]string{"message": rt.ack})
	}
}

// --- Queries ---

func (d *ServerDeps) HandleGetCampaigns(w http.ResponseWriter, r *http.Request) {
	email := r.URL.Query().Get("email")
	campaigns, err := d.Store.FindCampaignsByEmail(r.Context(), email)
	if err != nil {
		d.logger().WithError(err).WithField("email", email).Error("campaign lookup failed")
		WriteProblem(w, http.StatusInternalServerError, "query error", "could not load campaigns", nil)
		return
	}
	if campaigns == nil {
		campaigns = []domain.Campaign{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"campaign": campaigns})
}

type filterResp struct {
	Data  []domain.Customer `json:"data"`
	Query string            `json:"query"`
}

func (d *ServerDeps) HandleFilterCustomers(w http.ResponseWriter, r *http.Request) {
	defer DrainBody(r)
	var f domain.AudienceFilter
	if err := json.NewDecoder(r.Body).Decode(&f); err != nil {
		WriteProblem(w, http.StatusBadRequest, "invalid filter", err.Error(), nil)
		return
	}
	customers, err := d.Store.FilterCustomers(r.Context(), f)
	if err != nil {
		d.logger().WithError(err).Error("customer filter failed")
		WriteProblem(w, http.StatusInternalServerError, "query error", "Error fetching data", nil)
		return
	}
	resp := filterResp{Data: customers}
	if resp.Data == nil {
		resp.Data = []domain.Customer{}
	}
	if e := f.Expr(); e != nil {
		resp.Query = e.String()
	}
	writeJSON(w, http.StatusOK, resp)
}

// --- Router ---

func (d *ServerDeps) Router() http.Handler {
	r := mux.NewRouter()
	r.HandleFunc("/healthz", d.HandleHealthz).Methods(http.MethodGet)
	r.HandleFunc("/readyz", d.HandleReadyz).Methods(http.MethodGet)
	r.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)

	api := r.PathPrefix("/api").Subrouter()
	api.Use(BodyLimit(d.Cfg.MaxBodyBytes), RequireJSON)
	api.HandleFunc("/customers", d.HandlePublish(customerRoute)).Methods(http.MethodPost)
	api.HandleFunc("/customers/filter", d.HandleFilterCustomers).Methods(http.MethodPost)
	api.HandleFunc("/orders", d.HandlePublish(orderRoute)).Methods(http.MethodPost)
	api.HandleFunc("/campaign", d.HandlePublish(campaignRoute)).Methods(http.MethodPost)
	api.HandleFunc("/campaign", d.HandleGetCampaigns).Methods(http.MethodGet)
	api.HandleFunc("/campaign/email", d.HandlePublish(campaignEmailRoute)).Methods(http.MethodPost)

	var h http.Handler = r
	h = RateLimit(d.Limiter)(h)
	h = RequestLogger(d.logger())(h)
	h = cors.New(cors.Options{
		AllowedOrigins:   d.Cfg.CORSOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders:   []string{"Content-Type", "X-Request-ID"},
		AllowCredentials: true,
	}).Handler(h)
	return h
}
