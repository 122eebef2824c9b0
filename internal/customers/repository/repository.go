package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var ErrNotFound = errors.New("customer not found")

// Customer statuses. A referrer-only customer exists purely as a referral
// anchor and has never gone through intake.
const (
	StatusRegular      = "regular"
	StatusReferrerOnly = "referrer_only"
)

type Customer struct {
	ID              uuid.UUID
	CustomerName    string
	MobileNumber    string
	RawMobileNumber *string
	WhatsAppNumber  *string
	CustomerEmail   *string
	Address         *string
	VisitRecord     *string
	CustomerStatus  string
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

type Repository struct {
	pool *pgxpool.Pool
}

func New(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Pool exposes the underlying pool so services can open transactions that
// span customer and audit writes.
func (r *Repository) Pool() *pgxpool.Pool {
	return r.pool
}

// InTx runs fn inside a transaction, committing on nil error.
func (r *Repository) InTx(ctx context.Context, fn func(tx pgx.Tx) error) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

const customerColumns = `id, customer_name, mobile_number, raw_mobile_number, whatsapp_number,
	customer_email, address, visit_record, customer_status, created_at, updated_at`

func scanCustomer(row pgx.Row) (Customer, error) {
	var c Customer
	err := row.Scan(
		&c.ID, &c.CustomerName, &c.MobileNumber, &c.RawMobileNumber, &c.WhatsAppNumber,
		&c.CustomerEmail, &c.Address, &c.VisitRecord, &c.CustomerStatus, &c.CreatedAt, &c.UpdatedAt,
	)
	return c, err
}

func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (Customer, error) {
	c, err := scanCustomer(r.pool.QueryRow(ctx, `SELECT `+customerColumns+` FROM customers WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return Customer{}, ErrNotFound
	}
	return c, err
}

// Search matches customers by mobile number (against both the normalized and
// the raw stored form) or by partial name, newest first.
func (r *Repository) Search(ctx context.Context, rawMobile, normalizedMobile, name string, limit int) ([]Customer, error) {
	conds := []string{}
	args := []any{}

	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if normalizedMobile != "" {
		p := arg(normalizedMobile)
		conds = append(conds, fmt.Sprintf("(mobile_number = %s OR raw_mobile_number = %s)", p, p))
	}
	if rawMobile != "" && rawMobile != normalizedMobile {
		p := arg(rawMobile)
		conds = append(conds, fmt.Sprintf("(mobile_number = %s OR raw_mobile_number = %s)", p, p))
	}
	if name != "" {
		conds = append(conds, "customer_name ILIKE "+arg("%"+name+"%"))
	}
	if len(conds) == 0 {
		return []Customer{}, nil
	}

	args = append(args, limit)
	sql := fmt.Sprintf(`SELECT %s FROM customers WHERE %s ORDER BY created_at DESC LIMIT $%d`,
		customerColumns, strings.Join(conds, " OR "), len(args))

	rows, err := r.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	customers := make([]Customer, 0)
	for rows.Next() {
		c, err := scanCustomer(rows)
		if err != nil {
			return nil, err
		}
		customers = append(customers, c)
	}
	return customers, rows.Err()
}

// editableColumns whitelists the customer fields an edit request may change.
var editableColumns = map[string]bool{
	"customer_name":   true,
	"mobile_number":   true,
	"whatsapp_number": true,
	"customer_email":  true,
	"address":         true,
	"visit_record":    true,
	"customer_status": true,
}

// ApplyFields writes an approved edit-request snapshot onto the customer row.
// Unknown keys are rejected rather than silently dropped.
func (r *Repository) ApplyFields(ctx context.Context, tx pgx.Tx, id uuid.UUID, fields map[string]any) error {
	if len(fields) == 0 {
		return nil
	}

	sets := []string{"updated_at = now()"}
	args := []any{id}
	for col, val := range fields {
		if !editableColumns[col] {
			return fmt.Errorf("customer field %q is not editable", col)
		}
		args = append(args, val)
		sets = append(sets, fmt.Sprintf("%s = $%d", col, len(args)))
	}

	tag, err := tx.Exec(ctx, fmt.Sprintf("UPDATE customers SET %s WHERE id = $1", strings.Join(sets, ", ")), args...)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// SyncCategories replaces the customer's category set.
func (r *Repository) SyncCategories(ctx context.Context, tx pgx.Tx, customerID uuid.UUID, categoryIDs []uuid.UUID) error {
	if _, err := tx.Exec(ctx, `DELETE FROM customer_categories WHERE customer_id = $1`, customerID); err != nil {
		return err
	}
	for _, categoryID := range categoryIDs {
		if _, err := tx.Exec(ctx,
			`INSERT INTO customer_categories (customer_id, category_id) VALUES ($1, $2) ON CONFLICT DO NOTHING`,
			customerID, categoryID,
		); err != nil {
			return err
		}
	}
	return nil
}

func (r *Repository) CategoryIDs(ctx context.Context, customerID uuid.UUID) ([]uuid.UUID, error) {
	rows, err := r.pool.Query(ctx, `SELECT category_id FROM customer_categories WHERE customer_id = $1`, customerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	ids := make([]uuid.UUID, 0)
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
