package postgres

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/KroNicalKODER/mini-crm-backend/internal/domain"
)

// Store is the document store backed by Postgres.
type Store struct {
	db  *DB
	now func() time.Time
}

func NewStore(db *DB) *Store {
	return &Store{db: db, now: func() time.Time { return time.Now().UTC() }}
}

func (s *Store) Ready(ctx context.Context) error { return s.db.Ready(ctx) }

var customerCols = []string{"id", "name", "email", "total_spends", "last_visit", "visits", "created_at", "updated_at"}

func (s *Store) stamp(c *domain.Customer) {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	now := s.now()
	c.CreatedAt, c.UpdatedAt = now, now
}

func (s *Store) InsertCustomer(ctx context.Context, c domain.Customer) (domain.Customer, error) {
	s.stamp(&c)
	if _, err := insertCustomers(ctx, s.db.Pool, []domain.Customer{c}); err != nil {
		return domain.Customer{}, err
	}
	return c, nil
}

// InsertCustomers inserts all customers in one transaction, chunked to stay
// under the bind-parameter limit.
func (s *Store) InsertCustomers(ctx context.Context, items []domain.Customer) (int64, error) {
	stamped := s.stampAll(items)
	var n int64
	err := pgx.BeginFunc(ctx, s.db.Pool, func(tx pgx.Tx) error {
		var err error
		n, err = insertCustomers(ctx, tx, stamped)
		return err
	})
	if err != nil {
		return 0, err
	}
	return n, nil
}

// ReplaceCustomers wipes the collection and inserts items atomically; on any
// failure the previous customers stay in place.
func (s *Store) ReplaceCustomers(ctx context.Context, items []domain.Customer) (deleted, inserted int64, err error) {
	stamped := s.stampAll(items)
	err = pgx.BeginFunc(ctx, s.db.Pool, func(tx pgx.Tx) error {
		ct, err := tx.Exec(ctx, "DELETE FROM customers")
		if err != nil {
			return storeErr("delete customers", err)
		}
		deleted = ct.RowsAffected()
		inserted, err = insertCustomers(ctx, tx, stamped)
		return err
	})
	if err != nil {
		return 0, 0, err
	}
	return deleted, inserted, nil
}

func (s *Store) stampAll(items []domain.Customer) []domain.Customer {
	stamped := make([]domain.Customer, len(items))
	for i, c := range items {
		s.stamp(&c)
		stamped[i] = c
	}
	return stamped
}

// maxBindParams is the Postgres extended-protocol limit per statement.
const maxBindParams = 65535

// customerChunkRows is how many customers fit in one INSERT.
var customerChunkRows = maxBindParams / len(customerCols)

type execer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

func insertCustomers(ctx context.Context, db execer, items []domain.Customer) (int64, error) {
	var total int64
	for start := 0; start < len(items); start += customerChunkRows {
		end := min(start+customerChunkRows, len(items))
		sql, args := customerInsertSQL(items[start:end])
		ct, err := db.Exec(ctx, sql, args...)
		if err != nil {
			return 0, storeErr("insert customers", err)
		}
		total += ct.RowsAffected()
	}
	return total, nil
}

// customerInsertSQL builds one multi-row INSERT with $n placeholders.
func customerInsertSQL(items []domain.Customer) (string, []any) {
	placeholders := make([]string, 0, len(items))
	args := make([]any, 0, len(items)*len(customerCols))

	argi := 1
	for _, c := range items {
		ph := make([]string, 0, len(customerCols))
		for _, v := range []any{c.ID, c.Name, c.Email, c.TotalSpends, c.LastVisit, c.Visits, c.CreatedAt, c.UpdatedAt} {
			args = append(args, v)
			ph = append(ph, fmt.Sprintf("$%d", argi))
			argi++
		}
		placeholders = append(placeholders, "("+strings.Join(ph, ",")+")")
	}

	sql := "INSERT INTO customers (" + strings.Join(customerCols, ",") + ") VALUES " +
		strings.Join(placeholders, ",")
	return sql, args
}

// FilterCustomers returns the customers matching the folded audience
// expression, oldest first.
func (s *Store) FilterCustomers(ctx context.Context, f domain.AudienceFilter) ([]domain.Customer, error) {
	var args []any
	cond := ""
	if e := f.Expr(); e != nil {
		cond = "WHERE " + renderExpr(e, &args)
	}

	sql := "SELECT " + strings.Join(customerCols, ",") + " FROM customers " + cond + " ORDER BY created_at ASC"
	rows, err := s.db.Pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, storeErr("filter customers", err)
	}
	defer rows.Close()

	out := []domain.Customer{}
	for rows.Next() {
		c, err := scanCustomer(rows)
		if err != nil {
			return nil, storeErr("scan customer", err)
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, storeErr("filter customers", err)
	}
	return out, nil
}

func scanCustomer(row pgx.Row) (domain.Customer, error) {
	var c domain.Customer
	err := row.Scan(&c.ID, &c.Name, &c.Email, &c.TotalSpends, &c.LastVisit, &c.Visits, &c.CreatedAt, &c.UpdatedAt)
	return c, err
}

var exprColumns = map[string]string{
	domain.FieldTotalSpends: "total_spends",
	domain.FieldVisits:      "visits",
	domain.FieldLastVisit:   "last_visit",
}

// renderExpr turns a folded audience expression into a parenthesised SQL
// predicate, appending bind values to args.
func renderExpr(e domain.Expr, args *[]any) string {
	switch n := e.(type) {
	case *domain.Logical:
		op := "OR"
		if n.Op == domain.OpAnd {
			op = "AND"
		}
		return "(" + renderExpr(n.Left, args) + " " + op + " " + renderExpr(n.Right, args) + ")"
	case *domain.Cond:
		col, ok := exprColumns[n.Field]
		if !ok {
			return "FALSE"
		}
		var parts []string
		if n.Min != nil {
			*args = append(*args, n.Min)
			parts = append(parts, fmt.Sprintf("%s >= $%d", col, len(*args)))
		}
		if n.Max != nil {
			*args = append(*args, n.Max)
			parts = append(parts, fmt.Sprintf("%s <= $%d", col, len(*args)))
		}
		if len(parts) == 0 {
			return "TRUE"
		}
		return "(" + strings.Join(parts, " AND ") + ")"
	default:
		return "TRUE"
	}
}
