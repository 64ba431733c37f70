package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// ErrNotFound reports a missing subscription record.
var ErrNotFound = errors.New("db: subscription not found")

// SubscriptionRecord is one account's current provider subscription. At most
// one record exists per account; re-creating a subscription replaces it.
type SubscriptionRecord struct {
	AccountID      string
	SubscriptionID string
	Resource       string
	ClientState    string
	ExpiresAt      time.Time
	CreatedAt      time.Time
	RenewedAt      *time.Time
}

// UpsertSubscription stores or replaces the account's subscription.
func (d *Database) UpsertSubscription(ctx context.Context, rec SubscriptionRecord) error {
	_, err := d.db.ExecContext(ctx, `
		INSERT INTO subscriptions (account_id, subscription_id, resource, client_state, expires_at, created_at, renewed_at)
		VALUES (?, ?, ?, ?, ?, ?, NULL)
		ON CONFLICT (account_id) DO UPDATE SET
			subscription_id = excluded.subscription_id,
			resource = excluded.resource,
			client_state = excluded.client_state,
			expires_at = excluded.expires_at,
			created_at = excluded.created_at,
			renewed_at = NULL`,
		rec.AccountID,
		rec.SubscriptionID,
		rec.Resource,
		rec.ClientState,
		rec.ExpiresAt.UTC().Format(time.RFC3339),
		rec.CreatedAt.UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("upsert subscription: %w", err)
	}
	return nil
}

// TouchRenewal records a successful renewal's new expiration.
func (d *Database) TouchRenewal(ctx context.Context, subscriptionID string, expiresAt, renewedAt time.Time) error {
	res, err := d.db.ExecContext(ctx, `
		UPDATE subscriptions SET expires_at = ?, renewed_at = ? WHERE subscription_id = ?`,
		expiresAt.UTC().Format(time.RFC3339),
		renewedAt.UTC().Format(time.RFC3339),
		subscriptionID,
	)
	if err != nil {
		return fmt.Errorf("touch renewal: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("touch renewal: %w", err)
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

// GetSubscriptionByAccount fetches the account's subscription record.
func (d *Database) GetSubscriptionByAccount(ctx context.Context, accountID string) (SubscriptionRecord, error) {
	row := d.db.QueryRowContext(ctx, `
		SELECT account_id, subscription_id, resource, client_state, expires_at, created_at, renewed_at
		FROM subscriptions WHERE account_id = ?`, accountID)
	rec, err := scanSubscription(row)
	if errors.Is(err, sql.ErrNoRows) {
		return SubscriptionRecord{}, ErrNotFound
	}
	return rec, err
}

// ListSubscriptionsExpiringBefore returns subscriptions whose expiration falls
// before cutoff, soonest first.
func (d *Database) ListSubscriptionsExpiringBefore(ctx context.Context, cutoff time.Time) ([]SubscriptionRecord, error) {
	rows, err := d.db.QueryContext(ctx, `
		SELECT account_id, subscription_id, resource, client_state, expires_at, created_at, renewed_at
		FROM subscriptions WHERE expires_at < ? ORDER BY expires_at ASC`,
		cutoff.UTC().Format(time.RFC3339))
	if err != nil {
		return nil, fmt.Errorf("list expiring subscriptions: %w", err)
	}
	defer rows.Close()

	var records []SubscriptionRecord
	for rows.Next() {
		rec, err := scanSubscription(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

// DeleteSubscription removes a record the provider no longer recognizes.
func (d *Database) DeleteSubscription(ctx context.Context, subscriptionID string) error {
	_, err := d.db.ExecContext(ctx, `DELETE FROM subscriptions WHERE subscription_id = ?`, subscriptionID)
	if err != nil {
		return fmt.Errorf("delete subscription: %w", err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSubscription(row rowScanner) (SubscriptionRecord, error) {
	var rec SubscriptionRecord
	var expiresAt, createdAt string
	var renewedAt sql.NullString
	if err := row.Scan(&rec.AccountID, &rec.SubscriptionID, &rec.Resource, &rec.ClientState, &expiresAt, &createdAt, &renewedAt); err != nil {
		return SubscriptionRecord{}, err
	}

	var err error
	if rec.ExpiresAt, err = time.Parse(time.RFC3339, expiresAt); err != nil {
		return SubscriptionRecord{}, fmt.Errorf("parse expires_at: %w", err)
	}
	if rec.CreatedAt, err = time.Parse(time.RFC3339, createdAt); err != nil {
		return SubscriptionRecord{}, fmt.Errorf("parse created_at: %w", err)
	}
	if renewedAt.Valid {
		parsed, err := time.Parse(time.RFC3339, renewedAt.String)
		if err != nil {
			return SubscriptionRecord{}, fmt.Errorf("parse renewed_at: %w", err)
		}
		rec.RenewedAt = &parsed
	}
	return rec, nil
}
