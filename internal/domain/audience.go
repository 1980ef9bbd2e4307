package domain

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Op joins two audience conditions.
type Op string

const (
	OpAnd Op = "And"
	OpOr  Op = "Or"
)

func parseOp(s string) Op {
	if s == string(OpAnd) {
		return OpAnd
	}
	return OpOr
}

// Customer document fields an audience condition can range over.
const (
	FieldTotalSpends = "totalSpends"
	FieldVisits      = "visits"
	FieldLastVisit   = "lastVisit"
)

// AudienceFilter selects customers by spend, visit count and last visit.
// Nil bounds are absent. Ops[i] joins the accumulated expression with the
// (i+1)-th present condition.
type AudienceFilter struct {
	MinTotalSpend *float64
	MaxTotalSpend *float64
	MinVisits     *int64
	MaxVisits     *int64
	StartDate     *time.Time
	EndDate       *time.Time
	Ops           [3]Op
}

// UnmarshalJSON accepts numbers or strings for every bound; null, "" and
// missing keys leave the bound unset.
func (f *AudienceFilter) UnmarshalJSON(b []byte) error {
	var raw struct {
		MinTotalSpend json.RawMessage `json:"minTotalSpend"`
		MaxTotalSpend json.RawMessage `json:"maxTotalSpend"`
		MinVisits     json.RawMessage `json:"minVisits"`
		MaxVisits     json.RawMessage `json:"maxVisits"`
		StartDate     string          `json:"startDate"`
		EndDate       string          `json:"endDate"`
		Op1           string          `json:"op1"`
		Op2           string          `json:"op2"`
		Op3           string          `json:"op3"`
	}
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	var out AudienceFilter
	var err error
	if out.MinTotalSpend, err = optionalFloat("minTotalSpend", raw.MinTotalSpend); err != nil {
		return err
	}
	if out.MaxTotalSpend, err = optionalFloat("maxTotalSpend", raw.MaxTotalSpend); err != nil {
		return err
	}
	if out.MinVisits, err = optionalInt("minVisits", raw.MinVisits); err != nil {
		return err
	}
	if out.MaxVisits, err = optionalInt("maxVisits", raw.MaxVisits); err != nil {
		return err
	}
	if out.StartDate, err = optionalTime("startDate", raw.StartDate); err != nil {
		return err
	}
	if out.EndDate, err = optionalTime("endDate", raw.EndDate); err != nil {
		return err
	}
	out.Ops = [3]Op{parseOp(raw.Op1), parseOp(raw.Op2), parseOp(raw.Op3)}
	*f = out
	return nil
}

func blank(raw json.RawMessage) bool {
	s := strings.TrimSpace(string(raw))
	return s == "" || s == "null" || s == `""`
}

func optionalFloat(name string, raw json.RawMessage) (*float64, error) {
	if blank(raw) {
		return nil, nil
	}
	f, err := parseNumeric(raw)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	return &f, nil
}

func optionalInt(name string, raw json.RawMessage) (*int64, error) {
	f, err := optionalFloat(name, raw)
	if err != nil || f == nil {
		return nil, err
	}
	n := int64(*f)
	return &n, nil
}

func optionalTime(name, s string) (*time.Time, error) {
	if strings.TrimSpace(s) == "" {
		return nil, nil
	}
	ts, err := ParseTimestamp(s)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	return &ts.Time, nil
}

// Expr is a node of a folded audience expression: *Cond or *Logical.
type Expr interface {
	String() string
}

// Cond bounds one field; Min and Max are float64, int64 or time.Time.
type Cond struct {
	Field string
	Min   any
	Max   any
}

func (c *Cond) String() string {
	var parts []string
	if c.Min != nil {
		parts = append(parts, fmt.Sprintf("%s >= %s", c.Field, formatBound(c.Min)))
	}
	if c.Max != nil {
		parts = append(parts, fmt.Sprintf("%s <= %s", c.Field, formatBound(c.Max)))
	}
	return strings.Join(parts, " AND ")
}

type Logical struct {
	Op    Op
	Left  Expr
	Right Expr
}

func (l *Logical) String() string {
	return "(" + l.Left.String() + " " + strings.ToUpper(string(l.Op)) + " " + l.Right.String() + ")"
}

func formatBound(v any) string {
	if t, ok := v.(time.Time); ok {
		return t.UTC().Format(time.RFC3339)
	}
	return fmt.Sprint(v)
}

// Conditions returns the present conditions in fixed order: spend, visits,
// last visit. The date range is used only when both ends are given.
func (f AudienceFilter) Conditions() []*Cond {
	var out []*Cond
	if f.MinTotalSpend != nil || f.MaxTotalSpend != nil {
		c := &Cond{Field: FieldTotalSpends}
		if f.MinTotalSpend != nil {
			c.Min = *f.MinTotalSpend
		}
		if f.MaxTotalSpend != nil {
			c.Max = *f.MaxTotalSpend
		}
		out = append(out, c)
	}
	if f.MinVisits != nil || f.MaxVisits != nil {
		c := &Cond{Field: FieldVisits}
		if f.MinVisits != nil {
			c.Min = *f.MinVisits
		}
		if f.MaxVisits != nil {
			c.Max = *f.MaxVisits
		}
		out = append(out, c)
	}
	if f.StartDate != nil && f.EndDate != nil {
		out = append(out, &Cond{Field: FieldLastVisit, Min: f.StartDate.UTC(), Max: f.EndDate.UTC()})
	}
	return out
}

// Expr folds the conditions left to right with the positional operators.
// It returns nil when there are no conditions (match everything).
func (f AudienceFilter) Expr() Expr {
	conds := f.Conditions()
	if len(conds) == 0 {
		return nil
	}
	var acc Expr = conds[0]
	for i, c := range conds[1:] {
		acc = &Logical{Op: f.Ops[i], Left: acc, Right: c}
	}
	return acc
}

// Match evaluates e against a customer. A nil expression matches.
func Match(e Expr, c Customer) bool {
	switch n := e.(type) {
	case nil:
		return true
	case *Logical:
		if n.Op == OpAnd {
			return Match(n.Left, c) && Match(n.Right, c)
		}
		return Match(n.Left, c) || Match(n.Right, c)
	case *Cond:
		return n.match(c)
	default:
		return false
	}
}

func (c *Cond) match(cust Customer) bool {
	switch c.Field {
	case FieldTotalSpends:
		return inRange(cust.TotalSpends, c.Min, c.Max)
	case FieldVisits:
		return inRange(float64(cust.Visits), c.Min, c.Max)
	case FieldLastVisit:
		v := cust.LastVisit
		if lo, ok := c.Min.(time.Time); ok && v.Before(lo) {
			return false
		}
		if hi, ok := c.Max.(time.Time); ok && v.After(hi) {
			return false
		}
		return true
	default:
		return false
	}
}

func inRange(v float64, lo, hi any) bool {
	if f, ok := toFloat(lo); ok && v < f {
		return false
	}
	if f, ok := toFloat(hi); ok && v > f {
		return false
	}
	return true
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int64:
		return float64(n), true
	default:
		return 0, false
	}
}
