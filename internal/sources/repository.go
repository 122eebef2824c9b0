// Package sources resolves lead-origin attribution for customers and queries:
// a source channel plus conditional fields whose requiredness depends on the
// channel's name.
package sources

import (
	"context"
	"errors"
	"time"

	"salesops_backend/internal/audit"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Payload carries a source channel id and its conditional fields.
type Payload struct {
	SourceID             *uuid.UUID
	WhatsAppID           *uuid.UUID
	EmailID              *uuid.UUID
	ReferredByUserID     *uuid.UUID
	ReferredByCustomerID *uuid.UUID
	// ReferredByCustomer is the explicit yes/no flag for the customer-side
	// "Referred by Customer" channel; nil when the caller never answered.
	ReferredByCustomer *bool
}

// SourceLog is one attribution entry; the latest by insertion order is
// authoritative for a customer.
type SourceLog struct {
	ID                   int64
	CustomerID           uuid.UUID
	SourceID             uuid.UUID
	WhatsAppID           *uuid.UUID
	EmailID              *uuid.UUID
	ReferredByUserID     *uuid.UUID
	ReferredByCustomerID *uuid.UUID
	CreatedByUserID      *uuid.UUID
	CreatedAt            time.Time
}

// Payload converts the stored log back into a resolvable payload.
func (l *SourceLog) Payload() Payload {
	sourceID := l.SourceID
	return Payload{
		SourceID:             &sourceID,
		WhatsAppID:           l.WhatsAppID,
		EmailID:              l.EmailID,
		ReferredByUserID:     l.ReferredByUserID,
		ReferredByCustomerID: l.ReferredByCustomerID,
	}
}

type Repository struct {
	pool *pgxpool.Pool
}

func New(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// SourceName looks up the channel name for an id; empty string when the id
// does not resolve.
func (r *Repository) SourceName(ctx context.Context, id uuid.UUID) (string, error) {
	var name string
	err := r.pool.QueryRow(ctx, `
		SELECT source_name FROM generic_sources WHERE id = $1
	`, id).Scan(&name)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return name, nil
}

// SourceExists reports whether the channel id still resolves.
func (r *Repository) SourceExists(ctx context.Context, id uuid.UUID) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx, `
		SELECT EXISTS(SELECT 1 FROM generic_sources WHERE id = $1)
	`, id).Scan(&exists)
	return exists, err
}

// LatestCustomerSourceLog returns the customer's latest attribution entry,
// or nil when none exists.
func (r *Repository) LatestCustomerSourceLog(ctx context.Context, customerID uuid.UUID) (*SourceLog, error) {
	var log SourceLog
	err := r.pool.QueryRow(ctx, `
		SELECT id, customer_id, source_id, source_wa_id, source_email_id,
			referred_by_user_id, referred_by_customer_id, created_by_user_id, created_at
		FROM customer_source_logs
		WHERE customer_id = $1
		ORDER BY id DESC
		LIMIT 1
	`, customerID).Scan(
		&log.ID, &log.CustomerID, &log.SourceID, &log.WhatsAppID, &log.EmailID,
		&log.ReferredByUserID, &log.ReferredByCustomerID, &log.CreatedByUserID, &log.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &log, nil
}

// CreateQuerySourceLog writes the query-level attribution entry within the
// caller's transaction.
func (r *Repository) CreateQuerySourceLog(ctx context.Context, db audit.DBTX, queryID uuid.UUID, payload Payload, createdBy uuid.UUID) error {
	_, err := db.Exec(ctx, `
		INSERT INTO query_source_logs (
			query_id, source_id, source_wa_id, source_email_id,
			referred_by_user_id, referred_by_customer_id, created_by_user_id
		) VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, queryID, payload.SourceID, payload.WhatsAppID, payload.EmailID,
		payload.ReferredByUserID, payload.ReferredByCustomerID, createdBy)
	return err
}

// CreateCustomerSourceLog appends a customer-level attribution entry within
// the caller's transaction.
func (r *Repository) CreateCustomerSourceLog(ctx context.Context, db audit.DBTX, customerID uuid.UUID, payload Payload, createdBy uuid.UUID) error {
	_, err := db.Exec(ctx, `
		INSERT INTO customer_source_logs (
			customer_id, source_id, source_wa_id, source_email_id,
			referred_by_user_id, referred_by_customer_id, created_by_user_id
		) VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, customerID, payload.SourceID, payload.WhatsAppID, payload.EmailID,
		payload.ReferredByUserID, payload.ReferredByCustomerID, createdBy)
	return err
}
