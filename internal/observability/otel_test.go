package observability

import (
	"net/http"
	"testing"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

func TestInstrumentDefaultHTTPClientWrapsTransport(t *testing.T) {
	// Mutates process-wide transports; restore them afterwards.
	savedTransport := http.DefaultTransport
	savedClientTransport := http.DefaultClient.Transport
	t.Cleanup(func() {
		http.DefaultTransport = savedTransport
		http.DefaultClient.Transport = savedClientTransport
	})

	instrumentDefaultHTTPClient()

	if _, ok := http.DefaultTransport.(*otelhttp.Transport); !ok {
		t.Fatalf("DefaultTransport type = %T, want *otelhttp.Transport", http.DefaultTransport)
	}
	if http.DefaultClient.Transport != http.DefaultTransport {
		t.Fatal("DefaultClient must share the instrumented transport")
	}
}
