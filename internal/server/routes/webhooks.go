package routes

import (
	"log/slog"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/replyflow/mailhook/internal/dispatch"
)

// WebhookRoutes serves the provider-facing notification endpoint.
type WebhookRoutes struct {
	dispatcher *dispatch.Dispatcher
	log        *slog.Logger
}

// NewWebhookRoutes constructs webhook routes.
func NewWebhookRoutes(dispatcher *dispatch.Dispatcher, log *slog.Logger) *WebhookRoutes {
	if log == nil {
		log = slog.Default()
	}
	return &WebhookRoutes{dispatcher: dispatcher, log: log}
}

// RegisterRoutes registers webhook endpoints.
func (w *WebhookRoutes) RegisterRoutes(s *echo.Echo) {
	s.GET("/webhooks/graph", w.handleValidation)
	s.POST("/webhooks/graph", w.handleNotifications)
}

// handleValidation answers the provider's subscription-validation handshake:
// the validation token must be echoed back verbatim as plain text.
func (w *WebhookRoutes) handleValidation(c echo.Context) error {
	if token := c.QueryParam("validationToken"); token != "" {
		return c.String(http.StatusOK, token)
	}
	return c.String(http.StatusOK, "Ok")
}

type notificationBatch struct {
	Value []dispatch.Notification `json:"value"`
}

// handleNotifications accepts one delivery batch. Per-notification rejection
// is data-level and still answers 202, otherwise the provider treats the
// delivery as failed and retry-storms the endpoint.
func (w *WebhookRoutes) handleNotifications(c echo.Context) error {
	var batch notificationBatch
	if err := c.Bind(&batch); err != nil {
		// A body that fails to parse is a transport-level fault, not a
		// notification rejection. The 202-always contract covers parsed
		// notifications only.
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid notification payload"})
	}

	deliveryID := uuid.NewString()
	ctx := c.Request().Context()

	outcome := w.dispatcher.Dispatch(ctx, batch.Value)
	w.log.InfoContext(ctx, "processed notification delivery",
		"delivery_id", deliveryID,
		"received", outcome.Received,
		"drafted", outcome.Drafted,
		"rejected", len(outcome.Rejected),
	)

	return c.JSON(http.StatusAccepted, outcome)
}
