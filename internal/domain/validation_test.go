package domain

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
)

func decodeCustomer(t *testing.T, raw string) CustomerPayload {
	t.Helper()
	var p CustomerPayload
	require.NoError(t, json.Unmarshal([]byte(raw), &p))
	return p
}

func fieldNames(err error) []string {
	ve, ok := err.(*ValidationError)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(ve.Fields))
	for _, f := range ve.Fields {
		out = append(out, f.Field)
	}
	return out
}

func TestValidateCustomer(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name    string
		raw     string
		invalid []string
	}{
		{
			name: "complete",
			raw:  `{"name":"Ann","email":"ann@example.com","totalSpends":1200.5,"lastVisit":"2024-03-01T10:00:00Z","visits":4}`,
		},
		{
			name: "numeric strings and date only",
			raw:  `{"name":"Ann","email":"ann@example.com","totalSpends":"1200.50","lastVisit":"2024-03-01","visits":"4"}`,
		},
		{
			name: "zero spends and visits are present",
			raw:  `{"name":"Ann","email":"ann@example.com","totalSpends":0,"lastVisit":"2024-03-01","visits":0}`,
		},
		{
			name:    "missing everything",
			raw:     `{}`,
			invalid: []string{"name", "email", "totalSpends", "lastVisit", "visits"},
		},
		{
			name:    "bad email",
			raw:     `{"name":"Ann","email":"ann@@example","totalSpends":1,"lastVisit":"2024-03-01","visits":1}`,
			invalid: []string{"email"},
		},
		{
			name:    "negative values",
			raw:     `{"name":"Ann","email":"ann@example.com","totalSpends":-1,"lastVisit":"2024-03-01","visits":-2}`,
			invalid: []string{"totalSpends", "visits"},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			p := decodeCustomer(t, tc.raw)
			err := ValidateCustomer(&p)
			if len(tc.invalid) == 0 {
				require.NoError(t, err)
				return
			}
			require.Error(t, err)
			require.Equal(t, "invalid", Classify(err))
			require.ElementsMatch(t, tc.invalid, fieldNames(err))
		})
	}
}

func TestCustomerPayloadDecodeRejectsGarbage(t *testing.T) {
	t.Parallel()

	var p CustomerPayload
	require.Error(t, json.Unmarshal([]byte(`{"totalSpends":"lots"}`), &p))
	require.Error(t, json.Unmarshal([]byte(`{"visits":1.5}`), &p))
	require.Error(t, json.Unmarshal([]byte(`{"lastVisit":"yesterday"}`), &p))
}

func TestCustomerPayloadBuildsDocument(t *testing.T) {
	t.Parallel()

	p := decodeCustomer(t, `{"name":"Ann","email":"ann@example.com","totalSpends":"99.5","lastVisit":"2024-03-01","visits":3}`)
	require.NoError(t, ValidateCustomer(&p))

	c := p.Customer()
	require.Equal(t, "Ann", c.Name)
	require.Equal(t, 99.5, c.TotalSpends)
	require.Equal(t, int64(3), c.Visits)
	require.Equal(t, 2024, c.LastVisit.Year())
	require.Empty(t, c.ID)
}

func TestValidateOrder(t *testing.T) {
	t.Parallel()

	var ok OrderPayload
	require.NoError(t, json.Unmarshal([]byte(`{"customerId":"c1","amount":"10","date":"2024-05-05T12:00:00Z"}`), &ok))
	require.NoError(t, ValidateOrder(&ok))
	require.Equal(t, 10.0, ok.Order().Amount)

	var missing OrderPayload
	require.NoError(t, json.Unmarshal([]byte(`{"amount":0}`), &missing))
	err := ValidateOrder(&missing)
	require.Error(t, err)
	require.ElementsMatch(t, []string{"customerId", "date"}, fieldNames(err))
}

func TestValidateCampaign(t *testing.T) {
	t.Parallel()

	p := CampaignPayload{Email: "owner@example.com"}
	require.NoError(t, ValidateCampaign(&p))
	require.NotNil(t, p.Campaign().CustomerIDs)
	require.Empty(t, p.Campaign().CustomerIDs)

	bad := CampaignPayload{Email: "not-an-email"}
	err := ValidateCampaign(&bad)
	require.Error(t, err)
	require.Contains(t, err.Error(), "invalid campaign data")
	require.Contains(t, err.Error(), "email: invalid email format")
}

func TestValidEmail(t *testing.T) {
	t.Parallel()

	for s, want := range map[string]bool{
		"a@b.co":          true,
		"first.last@x.io": true,
		"a b@c.d":         false,
		"a@b":             false,
		"@b.c":            false,
		"":                false,
	} {
		require.Equal(t, want, ValidEmail(s), s)
	}
}
