package transporthttp

import (
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"github.com/ulule/limiter/v3"
	stdlimiter "github.com/ulule/limiter/v3/drivers/middleware/stdlib"
	memstorelimiter "github.com/ulule/limiter/v3/drivers/store/memory"
	redisstorelimiter "github.com/ulule/limiter/v3/drivers/store/redis"
)

// BodyLimit limits request bodies to maxBytes.
func BodyLimit(maxBytes int64) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if maxBytes > 0 {
				r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequireJSON ensures Content-Type is application/json for POST endpoints.
func RequireJSON(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ct := r.Header.Get("Content-Type")
		if r.Method == http.MethodPost && !strings.HasPrefix(strings.ToLower(ct), "application/json") {
			WriteProblem(w, http.StatusUnsupportedMediaType, "unsupported media type", "expected application/json", nil)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// NewRateLimiter builds a limiter from a formatted rate ("600-M"). storage is
// "memory" or "redis"; client is required for redis. An empty rate returns nil.
func NewRateLimiter(rate, storage string, client *redis.Client) (*limiter.Limiter, error) {
	if strings.TrimSpace(rate) == "" {
		return nil, nil
	}
	r, err := limiter.NewRateFromFormatted(rate)
	if err != nil {
		return nil, errors.Wrapf(err, "rate %q", rate)
	}
	var store limiter.Store
	switch storage {
	case "redis":
		if client == nil {
			return nil, errors.New("redis rate limit storage needs a redis client")
		}
		store, err = redisstorelimiter.NewStoreWithOptions(client, limiter.StoreOptions{Prefix: "crm_rate_limit"})
		if err != nil {
			return nil, errors.Wrap(err, "redis limiter store")
		}
	default:
		store = memstorelimiter.NewStore()
	}
	return limiter.New(store, r), nil
}

// RateLimit rejects requests over the limiter's rate with 429. A nil limiter
// disables limiting.
func RateLimit(l *limiter.Limiter) func(http.Handler) http.Handler {
	if l == nil {
		return func(next http.Handler) http.Handler { return next }
	}
	mw := stdlimiter.NewMiddleware(l, stdlimiter.WithLimitReachedHandler(func(w http.ResponseWriter, r *http.Request) {
		WriteProblem(w, http.StatusTooManyRequests, "rate limit exceeded", "try again later", nil)
	}))
	return mw.Handler
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (w *statusRecorder) WriteHeader(code int) {
	if w.status == 0 {
		w.status = code
	}
	w.ResponseWriter.WriteHeader(code)
}

func (w *statusRecorder) Status() int {
	if w.status == 0 {
		return http.StatusOK
	}
	return w.status
}

// RequestLogger logs one line per request with a request id taken from
// X-Request-ID or generated.
func RequestLogger(log *logrus.Entry) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			id := r.Header.Get("X-Request-ID")
			if id == "" {
				id = uuid.NewString()
			}
			w.Header().Set("X-Request-ID", id)

			rec := &statusRecorder{ResponseWriter: w}
			next.ServeHTTP(rec, r)

			log.WithFields(logrus.Fields{
				"request-id": id,
				"method":     r.Method,
				"path":       r.URL.Path,
				"status":     rec.Status(),
				"duration":   time.Since(start).String(),
			}).Info("request completed")
		})
	}
}

// DrainBody fully reads and closes request bodies (handler helper).
func DrainBody(r *http.Request) {
	if r.Body != nil {
		_, _ = io.Copy(io.Discard, r.Body)
		_ = r.Body.Close()
	}
}
