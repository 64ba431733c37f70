package dispatch

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestDraftClientSendsInternalSecretHeaders(t *testing.T) {
	t.Parallel()

	var captured draftRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("x-internal-secret"); got != "internal" {
			t.Fatalf("unexpected internal secret header: %q", got)
		}
		if got := r.Header.Get("apikey"); got != "anon-key" {
			t.Fatalf("unexpected apikey header: %q", got)
		}
		if got := r.Header.Get("Content-Type"); got != "application/json" {
			t.Fatalf("unexpected content type: %q", got)
		}
		if err := json.NewDecoder(r.Body).Decode(&captured); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		_ = json.NewEncoder(w).Encode(map[string]string{"draftId": "d1"})
	}))
	defer srv.Close()

	client := NewDraftClient(srv.URL, "anon-key", "internal")
	draftID, err := client.Generate(context.Background(), "acct_1", "msg_1")
	if err != nil {
		t.Fatalf("Generate error = %v", err)
	}
	if draftID != "d1" {
		t.Fatalf("draft id: got=%q want=d1", draftID)
	}
	if captured.SubjectID != "acct_1" || captured.MessageID != "msg_1" {
		t.Fatalf("unexpected request body: %+v", captured)
	}
}

func TestDraftClientToleratesMissingDraftID(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	client := NewDraftClient(srv.URL, "", "internal")
	draftID, err := client.Generate(context.Background(), "acct_1", "msg_1")
	if err != nil {
		t.Fatalf("Generate error = %v", err)
	}
	if draftID != "" {
		t.Fatalf("draft id: got=%q want empty", draftID)
	}
}

func TestDraftClientExtractsStructuredError(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		_ = json.NewEncoder(w).Encode(map[string]string{"error": "model unavailable"})
	}))
	defer srv.Close()

	client := NewDraftClient(srv.URL, "", "internal")
	_, err := client.Generate(context.Background(), "acct_1", "msg_1")
	if err == nil {
		t.Fatalf("expected error")
	}
	if got := err.Error(); got != "draft service: model unavailable" {
		t.Fatalf("unexpected error text: %q", got)
	}
}

func TestDraftClientFallsBackToStatusOnOpaqueError(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte("upstream exploded"))
	}))
	defer srv.Close()

	client := NewDraftClient(srv.URL, "", "internal")
	_, err := client.Generate(context.Background(), "acct_1", "msg_1")
	if err == nil {
		t.Fatalf("expected error")
	}
	if got := err.Error(); got != "draft service: status 500" {
		t.Fatalf("unexpected error text: %q", got)
	}
}

func TestDraftClientConfigured(t *testing.T) {
	t.Parallel()

	if NewDraftClient("", "key", "secret").Configured() {
		t.Fatalf("client without endpoint must not be configured")
	}
	if NewDraftClient("https://drafts.internal", "key", "").Configured() {
		t.Fatalf("client without internal secret must not be configured")
	}
	if !NewDraftClient("https://drafts.internal", "", "secret").Configured() {
		t.Fatalf("endpoint plus secret should be configured")
	}
	var nilClient *DraftClient
	if nilClient.Configured() {
		t.Fatalf("nil client must not be configured")
	}
}
