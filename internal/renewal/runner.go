// Package renewal keeps provider subscriptions alive. The provider caps mail
// subscription lifetime around an hour, so without this loop notifications
// silently stop.
package renewal

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/replyflow/mailhook/internal/db"
	"github.com/replyflow/mailhook/internal/graph"
)

// SubscriptionStore is the persistence surface the runner needs.
type SubscriptionStore interface {
	ListSubscriptionsExpiringBefore(ctx context.Context, cutoff time.Time) ([]db.SubscriptionRecord, error)
	TouchRenewal(ctx context.Context, subscriptionID string, expiresAt, renewedAt time.Time) error
	DeleteSubscription(ctx context.Context, subscriptionID string) error
}

// TokenSource yields a provider access token for one account.
type TokenSource interface {
	AccessToken(ctx context.Context, accountID string) (string, error)
}

// Renewer extends a provider subscription's lifetime.
type Renewer interface {
	Renew(ctx context.Context, accessToken, subscriptionID string) (graph.Subscription, error)
	LeadTime() time.Duration
}

// Runner periodically renews subscriptions that expire within the window.
type Runner struct {
	store    SubscriptionStore
	tokens   TokenSource
	provider Renewer
	interval time.Duration
	window   time.Duration
	log      *slog.Logger
	now      func() time.Time
}

// NewRunner wires the renewal loop.
func NewRunner(store SubscriptionStore, tokens TokenSource, provider Renewer, interval, window time.Duration, log *slog.Logger) *Runner {
	if log == nil {
		log = slog.Default()
	}
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	if window <= 0 {
		window = 10 * time.Minute
	}
	return &Runner{
		store:    store,
		tokens:   tokens,
		provider: provider,
		interval: interval,
		window:   window,
		log:      log,
		now:      time.Now,
	}
}

// Run blocks until ctx is cancelled, executing one renewal pass per tick.
func (r *Runner) Run(ctx context.Context) {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	r.log.Info("renewal runner started", "interval", r.interval, "window", r.window)
	for {
		select {
		case <-ctx.Done():
			r.log.Info("renewal runner stopped")
			return
		case <-ticker.C:
			renewed, failed := r.RunOnce(ctx)
			if renewed+failed > 0 {
				r.log.Info("renewal pass finished", "renewed", renewed, "failed", failed)
			}
		}
	}
}

// RunOnce renews every subscription expiring within the window. A failure on
// one account never blocks the rest of the pass.
func (r *Runner) RunOnce(ctx context.Context) (renewed, failed int) {
	cutoff := r.now().Add(r.window)
	expiring, err := r.store.ListSubscriptionsExpiringBefore(ctx, cutoff)
	if err != nil {
		r.log.Error("failed to list expiring subscriptions", "error", err)
		return 0, 0
	}

	for _, rec := range expiring {
		if err := r.renewOne(ctx, rec); err != nil {
			failed++
			r.log.Warn("subscription renewal failed", "account_id", rec.AccountID, "subscription_id", rec.SubscriptionID, "error", err)
			continue
		}
		renewed++
	}
	return renewed, failed
}

func (r *Runner) renewOne(ctx context.Context, rec db.SubscriptionRecord) error {
	accessToken, err := r.tokens.AccessToken(ctx, rec.AccountID)
	if err != nil {
		return err
	}

	sub, err := r.provider.Renew(ctx, accessToken, rec.SubscriptionID)
	if err != nil {
		var renewErr *graph.RenewError
		if errors.As(err, &renewErr) && renewErr.Status == http.StatusNotFound {
			// The provider already expired it; a future create replaces the row.
			if deleteErr := r.store.DeleteSubscription(ctx, rec.SubscriptionID); deleteErr != nil {
				r.log.Error("failed to drop expired subscription", "subscription_id", rec.SubscriptionID, "error", deleteErr)
			}
		}
		return err
	}

	expiresAt := r.parseExpiration(sub.ExpirationDateTime)
	return r.store.TouchRenewal(ctx, rec.SubscriptionID, expiresAt, r.now())
}

func (r *Runner) parseExpiration(value string) time.Time {
	if parsed, err := time.Parse(time.RFC3339, value); err == nil {
		return parsed
	}
	return r.now().Add(r.provider.LeadTime())
}
