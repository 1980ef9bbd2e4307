package domain

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func decodeFilter(t *testing.T, raw string) AudienceFilter {
	t.Helper()
	var f AudienceFilter
	require.NoError(t, json.Unmarshal([]byte(raw), &f))
	return f
}

func TestAudienceFilterDecode(t *testing.T) {
	t.Parallel()

	f := decodeFilter(t, `{"minTotalSpend":"1000","maxTotalSpend":null,"minVisits":0,"maxVisits":"","startDate":"2024-01-01","op1":"And","op2":"whatever"}`)
	require.NotNil(t, f.MinTotalSpend)
	require.Equal(t, 1000.0, *f.MinTotalSpend)
	require.Nil(t, f.MaxTotalSpend)
	require.NotNil(t, f.MinVisits)
	require.Equal(t, int64(0), *f.MinVisits)
	require.Nil(t, f.MaxVisits)
	require.NotNil(t, f.StartDate)
	require.Nil(t, f.EndDate)
	require.Equal(t, [3]Op{OpAnd, OpOr, OpOr}, f.Ops)

	var bad AudienceFilter
	require.Error(t, json.Unmarshal([]byte(`{"minVisits":"many"}`), &bad))
	require.Error(t, json.Unmarshal([]byte(`{"startDate":"soon"}`), &bad))
}

func TestAudienceExprFold(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		raw  string
		want string
	}{
		{name: "empty", raw: `{}`, want: ""},
		{name: "single", raw: `{"minTotalSpend":10}`, want: "totalSpends >= 10"},
		{
			name: "spend and visits",
			raw:  `{"minTotalSpend":10,"maxTotalSpend":20,"maxVisits":5,"op1":"And"}`,
			want: "(totalSpends >= 10 AND totalSpends <= 20 AND visits <= 5)",
		},
		{
			name: "default op is or",
			raw:  `{"minTotalSpend":10,"minVisits":2}`,
			want: "(totalSpends >= 10 OR visits >= 2)",
		},
		{
			name: "three conditions fold left",
			raw:  `{"minTotalSpend":10,"minVisits":2,"startDate":"2024-01-01","endDate":"2024-02-01","op1":"Or","op2":"And"}`,
			want: "((totalSpends >= 10 OR visits >= 2) AND lastVisit >= 2024-01-01T00:00:00Z AND lastVisit <= 2024-02-01T00:00:00Z)",
		},
		{
			name: "date needs both ends",
			raw:  `{"minVisits":2,"startDate":"2024-01-01","op1":"And"}`,
			want: "visits >= 2",
		},
		{
			name: "op1 joins visits when spend absent",
			raw:  `{"minVisits":2,"startDate":"2024-01-01","endDate":"2024-02-01","op1":"And","op2":"Or"}`,
			want: "(visits >= 2 AND lastVisit >= 2024-01-01T00:00:00Z AND lastVisit <= 2024-02-01T00:00:00Z)",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			e := decodeFilter(t, tc.raw).Expr()
			if tc.want == "" {
				require.Nil(t, e)
				return
			}
			require.Equal(t, tc.want, e.String())
		})
	}
}

func TestMatch(t *testing.T) {
	t.Parallel()

	visit := time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC)
	rich := Customer{TotalSpends: 5000, Visits: 1, LastVisit: visit}
	loyal := Customer{TotalSpends: 50, Visits: 40, LastVisit: visit.AddDate(1, 0, 0)}

	and := decodeFilter(t, `{"minTotalSpend":1000,"minVisits":10,"op1":"And"}`).Expr()
	require.False(t, Match(and, rich))
	require.False(t, Match(and, loyal))

	or := decodeFilter(t, `{"minTotalSpend":1000,"minVisits":10,"op1":"Or"}`).Expr()
	require.True(t, Match(or, rich))
	require.True(t, Match(or, loyal))

	dated := decodeFilter(t, `{"startDate":"2024-01-01","endDate":"2024-02-01"}`).Expr()
	require.True(t, Match(dated, rich))
	require.False(t, Match(dated, loyal))

	require.True(t, Match(nil, loyal))
}
