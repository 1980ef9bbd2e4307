package config

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestParseDefaults(t *testing.T) {
	for _, k := range []string{"PORT", "STORE_DRIVER", "BUS_DRIVER", "DELIVERY_TRIGGER", "QUEUE_MAX_SIZE", "HANDLE_TIMEOUT", "CORS_ORIGINS", "RATE_LIMIT_STORAGE"} {
		t.Setenv(k, "")
		require.NoError(t, os.Unsetenv(k))
	}

	cfg, err := Parse()
	require.NoError(t, err)
	require.Equal(t, "8800", cfg.Port)
	require.Equal(t, "postgres", cfg.StoreDriver)
	require.Equal(t, "nats", cfg.BusDriver)
	require.Equal(t, "bus", cfg.DeliveryTrigger)
	require.Equal(t, 10000, cfg.QueueMaxSize)
	require.Equal(t, 30*time.Second, cfg.HandleTimeout)
	require.Equal(t, []string{"http://localhost:5173"}, cfg.CORSOrigins)
	require.Equal(t, "600-M", cfg.RateLimit)
}

func TestParseOverrides(t *testing.T) {
	t.Setenv("BUS_DRIVER", " Redis ")
	t.Setenv("DELIVERY_TRIGGER", "HTTP")
	t.Setenv("DELIVERY_SEED", "42")
	t.Setenv("HANDLE_TIMEOUT", "0s")
	t.Setenv("CORS_ORIGINS", "http://a.test,http://b.test")

	cfg, err := Parse()
	require.NoError(t, err)
	require.Equal(t, "redis", cfg.BusDriver)
	require.Equal(t, "http", cfg.DeliveryTrigger)
	require.Equal(t, int64(42), cfg.DeliverySeed)
	require.Zero(t, cfg.HandleTimeout)
	require.Equal(t, []string{"http://a.test", "http://b.test"}, cfg.CORSOrigins)
}

func TestValidate(t *testing.T) {
	t.Parallel()

	valid := func() Config {
		return Config{StoreDriver: "memory", BusDriver: "memory", DeliveryTrigger: "bus", RateLimitStorage: "memory", QueueMaxSize: 1}
	}

	cfg := valid()
	require.NoError(t, cfg.Validate())

	cfg = valid()
	cfg.BusDriver = "kafka"
	require.ErrorContains(t, cfg.Validate(), "BUS_DRIVER")

	cfg = valid()
	cfg.StoreDriver = "mongo"
	require.ErrorContains(t, cfg.Validate(), "STORE_DRIVER")

	cfg = valid()
	cfg.QueueMaxSize = 0
	require.ErrorContains(t, cfg.Validate(), "QUEUE_MAX_SIZE")
}
