package routes

import (
	"context"
	"crypto/subtle"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/replyflow/mailhook/internal/db"
	"github.com/replyflow/mailhook/internal/graph"
)

// SubscriptionManager is the provider lifecycle surface used by the admin API.
type SubscriptionManager interface {
	Create(ctx context.Context, accountID, notificationURL, accessToken string) (graph.Subscription, error)
	Renew(ctx context.Context, accessToken, subscriptionID string) (graph.Subscription, error)
	LeadTime() time.Duration
}

// SubscriptionStore persists the account-to-subscription mapping.
type SubscriptionStore interface {
	UpsertSubscription(ctx context.Context, rec db.SubscriptionRecord) error
	TouchRenewal(ctx context.Context, subscriptionID string, expiresAt, renewedAt time.Time) error
}

// SubscriptionRoutes exposes subscription creation and renewal to internal
// callers (the onboarding flow and operational tooling), bearer-protected by
// the admin token.
type SubscriptionRoutes struct {
	manager         SubscriptionManager
	store           SubscriptionStore
	notificationURL string
	adminToken      string
	log             *slog.Logger
	now             func() time.Time
}

// NewSubscriptionRoutes constructs the admin subscription routes.
func NewSubscriptionRoutes(manager SubscriptionManager, store SubscriptionStore, notificationURL, adminToken string, log *slog.Logger) *SubscriptionRoutes {
	if log == nil {
		log = slog.Default()
	}
	return &SubscriptionRoutes{
		manager:         manager,
		store:           store,
		notificationURL: notificationURL,
		adminToken:      strings.TrimSpace(adminToken),
		log:             log,
		now:             time.Now,
	}
}

// RegisterRoutes registers the admin subscription endpoints.
func (s *SubscriptionRoutes) RegisterRoutes(e *echo.Echo) {
	group := e.Group("/api/subscriptions", s.requireAdminToken)
	group.POST("", s.handleCreate)
	group.POST("/:id/renew", s.handleRenew)
}

func (s *SubscriptionRoutes) requireAdminToken(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		if s.adminToken == "" {
			return c.JSON(http.StatusServiceUnavailable, map[string]string{"error": "admin API is not configured"})
		}
		header := strings.TrimSpace(c.Request().Header.Get("Authorization"))
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || subtle.ConstantTimeCompare([]byte(strings.TrimSpace(token)), []byte(s.adminToken)) != 1 {
			return c.JSON(http.StatusUnauthorized, map[string]string{"error": "invalid admin token"})
		}
		return next(c)
	}
}

type createSubscriptionRequest struct {
	AccountID   string `json:"accountId"`
	AccessToken string `json:"accessToken"`
}

type renewSubscriptionRequest struct {
	AccessToken string `json:"accessToken"`
}

func (s *SubscriptionRoutes) handleCreate(c echo.Context) error {
	var req createSubscriptionRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request body"})
	}
	req.AccountID = strings.TrimSpace(req.AccountID)
	req.AccessToken = strings.TrimSpace(req.AccessToken)
	if req.AccountID == "" || req.AccessToken == "" {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "accountId and accessToken are required"})
	}

	ctx := c.Request().Context()
	sub, err := s.manager.Create(ctx, req.AccountID, s.notificationURL, req.AccessToken)
	if err != nil {
		var createErr *graph.CreateError
		if errors.As(err, &createErr) {
			s.log.WarnContext(ctx, "provider rejected subscription create", "account_id", req.AccountID, "status", createErr.Status)
			return c.JSON(http.StatusBadGateway, map[string]any{
				"error":           "provider rejected subscription",
				"provider_status": createErr.Status,
				"detail":          createErr.Body,
			})
		}
		s.log.ErrorContext(ctx, "subscription create failed", "account_id", req.AccountID, "error", err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "subscription create failed"})
	}

	now := s.now()
	rec := db.SubscriptionRecord{
		AccountID:      req.AccountID,
		SubscriptionID: sub.ID,
		Resource:       sub.Resource,
		ClientState:    sub.ClientState,
		ExpiresAt:      s.parseExpiration(sub.ExpirationDateTime, now),
		CreatedAt:      now,
	}
	if err := s.store.UpsertSubscription(ctx, rec); err != nil {
		s.log.ErrorContext(ctx, "failed to persist subscription", "account_id", req.AccountID, "subscription_id", sub.ID, "error", err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "subscription created but not persisted"})
	}

	return c.JSON(http.StatusCreated, sub)
}

func (s *SubscriptionRoutes) handleRenew(c echo.Context) error {
	subscriptionID := strings.TrimSpace(c.Param("id"))
	var req renewSubscriptionRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request body"})
	}
	req.AccessToken = strings.TrimSpace(req.AccessToken)
	if subscriptionID == "" || req.AccessToken == "" {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "subscription id and accessToken are required"})
	}

	ctx := c.Request().Context()
	sub, err := s.manager.Renew(ctx, req.AccessToken, subscriptionID)
	if err != nil {
		var renewErr *graph.RenewError
		if errors.As(err, &renewErr) {
			status := http.StatusBadGateway
			if renewErr.Status == http.StatusNotFound {
				status = http.StatusNotFound
			}
			s.log.WarnContext(ctx, "provider rejected subscription renew", "subscription_id", subscriptionID, "status", renewErr.Status)
			return c.JSON(status, map[string]any{
				"error":           "provider rejected renewal",
				"provider_status": renewErr.Status,
				"detail":          renewErr.Body,
			})
		}
		s.log.ErrorContext(ctx, "subscription renew failed", "subscription_id", subscriptionID, "error", err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "subscription renew failed"})
	}

	now := s.now()
	if err := s.store.TouchRenewal(ctx, subscriptionID, s.parseExpiration(sub.ExpirationDateTime, now), now); err != nil && !errors.Is(err, db.ErrNotFound) {
		s.log.ErrorContext(ctx, "failed to record renewal", "subscription_id", subscriptionID, "error", err)
	}

	return c.JSON(http.StatusOK, sub)
}

func (s *SubscriptionRoutes) parseExpiration(value string, now time.Time) time.Time {
	if parsed, err := time.Parse(time.RFC3339, value); err == nil {
		return parsed
	}
	return now.Add(s.manager.LeadTime())
}
