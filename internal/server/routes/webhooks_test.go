package routes

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"

	"github.com/replyflow/mailhook/internal/clientstate"
	"github.com/replyflow/mailhook/internal/dispatch"
)

type stubDrafts struct {
	configured bool
	draftID    string
	err        error
}

func (s *stubDrafts) Configured() bool { return s.configured }

func (s *stubDrafts) Generate(context.Context, string, string) (string, error) {
	return s.draftID, s.err
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newWebhookServer(t *testing.T, codec *clientstate.Codec, drafts dispatch.DraftGenerator) *echo.Echo {
	t.Helper()
	e := echo.New()
	NewWebhookRoutes(dispatch.NewDispatcher(codec, drafts, discardLogger()), discardLogger()).RegisterRoutes(e)
	return e
}

func TestValidationHandshakeEchoesTokenVerbatim(t *testing.T) {
	t.Parallel()

	e := newWebhookServer(t, clientstate.NewCodec("s3cr3t"), &stubDrafts{configured: true})

	req := httptest.NewRequest(http.MethodGet, "/webhooks/graph?validationToken=abc%20123", nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status: got=%d want=200", rec.Code)
	}
	if got := rec.Body.String(); got != "abc 123" {
		t.Fatalf("body: got=%q want=%q", got, "abc 123")
	}
	if ct := rec.Header().Get(echo.HeaderContentType); !strings.HasPrefix(ct, "text/plain") {
		t.Fatalf("content type: got=%q want text/plain", ct)
	}
}

func TestHealthPingWithoutValidationToken(t *testing.T) {
	t.Parallel()

	e := newWebhookServer(t, clientstate.NewCodec("s3cr3t"), &stubDrafts{configured: true})

	req := httptest.NewRequest(http.MethodGet, "/webhooks/graph", nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status: got=%d want=200", rec.Code)
	}
	if rec.Body.String() != "Ok" {
		t.Fatalf("body: got=%q want=Ok", rec.Body.String())
	}
}

func TestNotificationBatchAnswersAcceptedWithOutcome(t *testing.T) {
	t.Parallel()

	codec := clientstate.NewCodec("s3cr3t")
	e := newWebhookServer(t, codec, &stubDrafts{configured: true, draftID: "d1"})

	valid, err := codec.Encode("acct_1")
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	body := map[string]any{"value": []map[string]any{
		{"subscriptionId": "sub_1", "clientState": valid, "resourceData": map[string]string{"id": "msg_1"}},
		{"subscriptionId": "sub_2", "clientState": "tampered.000000000000000000000000", "resourceData": map[string]string{"id": "msg_2"}},
	}}
	raw, _ := json.Marshal(body)

	req := httptest.NewRequest(http.MethodPost, "/webhooks/graph", strings.NewReader(string(raw)))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	if rec.Code != http.StatusAccepted {
		t.Fatalf("status: got=%d want=202", rec.Code)
	}

	var outcome dispatch.Outcome
	if err := json.Unmarshal(rec.Body.Bytes(), &outcome); err != nil {
		t.Fatalf("decode outcome: %v", err)
	}
	if outcome.Received != 2 || outcome.Drafted != 1 {
		t.Fatalf("counts: received=%d drafted=%d", outcome.Received, outcome.Drafted)
	}
	if len(outcome.Processed) != 1 || outcome.Processed[0].DraftID != "d1" {
		t.Fatalf("processed: %+v", outcome.Processed)
	}
	if len(outcome.Rejected) != 1 || outcome.Rejected[0].Reason != dispatch.ReasonInvalidClientState {
		t.Fatalf("rejected: %+v", outcome.Rejected)
	}
}

func TestNotificationBatchAcceptedEvenWhenAllRejected(t *testing.T) {
	t.Parallel()

	e := newWebhookServer(t, clientstate.NewCodec("s3cr3t"), &stubDrafts{configured: false})

	body := `{"value":[{"subscriptionId":"sub_1","clientState":"x.y"}]}`
	req := httptest.NewRequest(http.MethodPost, "/webhooks/graph", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	if rec.Code != http.StatusAccepted {
		t.Fatalf("status: got=%d want=202", rec.Code)
	}

	var outcome dispatch.Outcome
	if err := json.Unmarshal(rec.Body.Bytes(), &outcome); err != nil {
		t.Fatalf("decode outcome: %v", err)
	}
	if len(outcome.Rejected) != 1 || outcome.Rejected[0].Reason != dispatch.ReasonMissingConfiguration {
		t.Fatalf("rejected: %+v", outcome.Rejected)
	}
}

func TestNotificationBatchRejectsMalformedJSON(t *testing.T) {
	t.Parallel()

	e := newWebhookServer(t, clientstate.NewCodec("s3cr3t"), &stubDrafts{configured: true})

	req := httptest.NewRequest(http.MethodPost, "/webhooks/graph", strings.NewReader("{not json"))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status: got=%d want=400", rec.Code)
	}
}

func TestEmptyBatchAnswersAccepted(t *testing.T) {
	t.Parallel()

	e := newWebhookServer(t, clientstate.NewCodec("s3cr3t"), &stubDrafts{configured: true})

	req := httptest.NewRequest(http.MethodPost, "/webhooks/graph", strings.NewReader(`{"value":[]}`))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	if rec.Code != http.StatusAccepted {
		t.Fatalf("status: got=%d want=202", rec.Code)
	}

	var outcome dispatch.Outcome
	if err := json.Unmarshal(rec.Body.Bytes(), &outcome); err != nil {
		t.Fatalf("decode outcome: %v", err)
	}
	if outcome.Received != 0 || len(outcome.Processed) != 0 || len(outcome.Rejected) != 0 {
		t.Fatalf("unexpected outcome: %+v", outcome)
	}
}
