package bus

import (
	"context"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	natsserver "github.com/nats-io/nats-server/v2/test"
	"github.com/nats-io/nats.go"
	"github.com/stretchr/testify/require"

	"github.com/KroNicalKODER/mini-crm-backend/internal/domain"
	"github.com/KroNicalKODER/mini-crm-backend/internal/logging"
)

func TestNATSCloseDeliversBufferedPublishes(t *testing.T) {
	t.Parallel()

	srv := natsserver.RunRandClientPortServer()
	t.Cleanup(srv.Shutdown)

	reader, err := nats.Connect(srv.ClientURL())
	require.NoError(t, err)
	t.Cleanup(reader.Close)

	var received atomic.Int64
	_, err = reader.Subscribe(domain.TopicIngest, func(*nats.Msg) { received.Add(1) })
	require.NoError(t, err)
	require.NoError(t, reader.Flush())

	n, err := DialNATS(srv.ClientURL(), logging.Nop())
	require.NoError(t, err)

	const total = 250
	for i := range total {
		require.NoError(t, n.Publish(context.Background(), domain.TopicIngest, fmt.Appendf(nil, `{"i":%d}`, i)))
	}
	require.NoError(t, n.Close())
	require.True(t, n.conn.IsClosed())
	require.NoError(t, n.Close(), "second close is a no-op")

	require.Eventually(t, func() bool { return received.Load() == total }, 5*time.Second, 10*time.Millisecond)
}
