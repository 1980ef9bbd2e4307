package domain

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/go-faster/errors"
	"github.com/stretchr/testify/require"
)

func TestKindTopic(t *testing.T) {
	t.Parallel()

	require.Equal(t, TopicIngest, KindCustomer.Topic())
	require.Equal(t, TopicIngest, KindCampaign.Topic())
	require.Equal(t, TopicIngest2, KindOrder.Topic())
	require.Equal(t, TopicIngest2, KindCampaignEmail.Topic())
	require.False(t, Kind("invoice").Known())
}

func TestEnvelopeRoundTripKeepsPayloadRaw(t *testing.T) {
	t.Parallel()

	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	raw := json.RawMessage(`{"name":"Ann","extra":{"kept":true}}`)
	env := NewEnvelope(KindCustomer, raw, now)
	require.NotEmpty(t, env.ID)

	b, err := env.Encode()
	require.NoError(t, err)

	got, err := DecodeEnvelope(b)
	require.NoError(t, err)
	require.Equal(t, env.ID, got.ID)
	require.Equal(t, KindCustomer, got.Type)
	require.JSONEq(t, string(raw), string(got.Data))
	require.True(t, now.Equal(got.Timestamp))
}

func TestEnvelopeEvent(t *testing.T) {
	t.Parallel()

	now := time.Now()

	t.Run("customer", func(t *testing.T) {
		t.Parallel()
		env := NewEnvelope(KindCustomer, json.RawMessage(`{"name":"Ann","email":"ann@example.com"}`), now)
		ev, err := env.Event()
		require.NoError(t, err)
		cc, ok := ev.(CustomerCreated)
		require.True(t, ok)
		require.Equal(t, "ann@example.com", cc.Payload.Email)
		require.Equal(t, KindCustomer, ev.Kind())
	})

	t.Run("campaign email carries stored campaign", func(t *testing.T) {
		t.Parallel()
		c := Campaign{ID: "cmp-1", Email: "o@example.com", CustomerIDs: []Target{{CustomerID: "c1", CustomerEmail: "c1@example.com"}}}
		env, err := Wrap(KindCampaignEmail, c, now)
		require.NoError(t, err)
		ev, err := env.Event()
		require.NoError(t, err)
		req, ok := ev.(CampaignEmailRequested)
		require.True(t, ok)
		require.Equal(t, "cmp-1", req.Campaign.ID)
		require.Len(t, req.Campaign.CustomerIDs, 1)
		require.Nil(t, req.Campaign.CustomerIDs[0].MailStatus)
	})

	t.Run("unknown kind", func(t *testing.T) {
		t.Parallel()
		env := NewEnvelope(Kind("invoice"), json.RawMessage(`{}`), now)
		_, err := env.Event()
		require.True(t, errors.Is(err, ErrUnknownKind))
		require.Equal(t, "unknown_kind", Classify(err))
	})

	t.Run("missing data", func(t *testing.T) {
		t.Parallel()
		env := Envelope{Type: KindOrder, Data: json.RawMessage(`null`)}
		_, err := env.Event()
		require.Equal(t, "invalid", Classify(err))
	})

	t.Run("wrong shape", func(t *testing.T) {
		t.Parallel()
		env := Envelope{Type: KindOrder, Data: json.RawMessage(`[1,2]`)}
		_, err := env.Event()
		require.Equal(t, "invalid", Classify(err))
	})
}

func TestDecodeEnvelopeRejectsNonJSON(t *testing.T) {
	t.Parallel()

	_, err := DecodeEnvelope([]byte("not json"))
	require.Error(t, err)
}

func TestClassify(t *testing.T) {
	t.Parallel()

	require.Equal(t, "ok", Classify(nil))
	require.Equal(t, "persistence_error", Classify(&PersistenceError{Op: "insert", Err: ErrDuplicate}))
	require.Equal(t, "transport_error", Classify(errors.Wrap(&TransportError{Op: "publish", Err: errors.New("down")}, "trigger")))
	require.Equal(t, "error", Classify(errors.New("boom")))
}
