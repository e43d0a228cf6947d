package panel

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"syscall"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/IlyaGulya/remnawave-modulegen/faults"
)

func testClient(t *testing.T, server *httptest.Server) *Client {
	t.Helper()
	client, err := NewClient(ClientConfig{
		BaseURL:    server.URL,
		Token:      "secret",
		RetryWait:  time.Millisecond,
		HTTPClient: server.Client(),
		Logger:     zerolog.Nop(),
	})
	if err != nil {
		t.Fatalf("NewClient() error = %v", err)
	}
	return client
}

func TestNewClientValidatesBaseURL(t *testing.T) {
	tests := []string{"", "   ", "no-scheme", "://bad"}
	for _, raw := range tests {
		if _, err := NewClient(ClientConfig{BaseURL: raw}); !faults.IsCategory(err, faults.ValidationError) {
			t.Fatalf("NewClient(%q) error = %v, want ValidationError", raw, err)
		}
	}

	client, err := NewClient(ClientConfig{BaseURL: "https://panel.example.com/"})
	if err != nil {
		t.Fatalf("NewClient() error = %v", err)
	}
	if client.baseURL.String() != "https://panel.example.com" {
		t.Fatalf("trailing slash not stripped: %q", client.baseURL)
	}
}

func TestClientSendsPanelHeaders(t *testing.T) {
	var got http.Header
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.Header.Clone()
		w.Write([]byte(`{"response":{}}`))
	}))
	defer server.Close()

	client := testClient(t, server)
	if _, _, err := client.Request(context.Background(), http.MethodGet, "/api/nodes", nil); err != nil {
		t.Fatalf("Request() error = %v", err)
	}

	if got.Get("Authorization") != "Bearer secret" {
		t.Fatalf("Authorization = %q", got.Get("Authorization"))
	}
	if got.Get("X-Forwarded-Proto") != "https" {
		t.Fatalf("X-Forwarded-Proto = %q", got.Get("X-Forwarded-Proto"))
	}
	if got.Get("X-Forwarded-For") != "127.0.0.1" {
		t.Fatalf("X-Forwarded-For = %q", got.Get("X-Forwarded-For"))
	}
	if got.Get("X-Request-ID") == "" {
		t.Fatal("X-Request-ID not set")
	}
	if got.Get("X-Remnawave-Client-Type") != "" {
		t.Fatal("client-type header sent outside token creation")
	}
}

func TestClientTokenCreationHeader(t *testing.T) {
	var got string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.Header.Get("X-Remnawave-Client-Type")
		w.WriteHeader(http.StatusCreated)
		w.Write([]byte(`{"response":{}}`))
	}))
	defer server.Close()

	client := testClient(t, server)
	if _, _, err := client.Request(context.Background(), http.MethodPost, "/api/tokens", map[string]any{"tokenName": "x"}); err != nil {
		t.Fatalf("Request() error = %v", err)
	}
	if got == "" {
		t.Fatal("client-type header missing on token creation")
	}
}

func TestClientMapsAPIErrors(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/nodes/missing":
			w.WriteHeader(http.StatusNotFound)
			w.Write([]byte(`{"message":"Node not found"}`))
		default:
			w.WriteHeader(http.StatusBadRequest)
			w.Write([]byte(`{"errorCode":"A072","message":"Config profile not found"}`))
		}
	}))
	defer server.Close()
	client := testClient(t, server)

	_, _, err := client.Request(context.Background(), http.MethodGet, "/api/nodes/missing", nil)
	if !faults.IsCategory(err, faults.NotFoundError) {
		t.Fatalf("error = %v, want NotFoundError", err)
	}
	if faults.StatusOf(err) != http.StatusNotFound {
		t.Fatalf("status = %d", faults.StatusOf(err))
	}

	_, _, err = client.Request(context.Background(), http.MethodPost, "/api/nodes", map[string]any{})
	if !faults.IsCategory(err, faults.APIError) {
		t.Fatalf("error = %v, want APIError", err)
	}
	var fault *faults.Error
	if !errors.As(err, &fault) || fault.APICode != "A072" || fault.Message != "Config profile not found" {
		t.Fatalf("fault = %+v", fault)
	}
}

type flakyTransport struct {
	failures int
	calls    int
	next     http.RoundTripper
}

func (f *flakyTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	f.calls++
	if f.calls <= f.failures {
		return nil, syscall.ECONNRESET
	}
	return f.next.RoundTrip(req)
}

func TestClientRetriesReadsOnce(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"response":{"ok":true}}`))
	}))
	defer server.Close()

	transport := &flakyTransport{failures: 1, next: http.DefaultTransport}
	client, err := NewClient(ClientConfig{
		BaseURL:    server.URL,
		RetryWait:  time.Millisecond,
		HTTPClient: &http.Client{Transport: transport},
		Logger:     zerolog.Nop(),
	})
	if err != nil {
		t.Fatalf("NewClient() error = %v", err)
	}

	if _, _, err := client.Request(context.Background(), http.MethodGet, "/api/nodes", nil); err != nil {
		t.Fatalf("Request() error = %v, want retried success", err)
	}
	if transport.calls != 2 {
		t.Fatalf("transport calls = %d, want 2", transport.calls)
	}
}

func TestClientNeverRetriesWrites(t *testing.T) {
	transport := &flakyTransport{failures: 10, next: http.DefaultTransport}
	client, err := NewClient(ClientConfig{
		BaseURL:    "http://127.0.0.1:1",
		RetryWait:  time.Millisecond,
		HTTPClient: &http.Client{Transport: transport},
		Logger:     zerolog.Nop(),
	})
	if err != nil {
		t.Fatalf("NewClient() error = %v", err)
	}

	_, _, err = client.Request(context.Background(), http.MethodPost, "/api/nodes", map[string]any{})
	if !faults.IsCategory(err, faults.TransportError) {
		t.Fatalf("error = %v, want TransportError", err)
	}
	if transport.calls != 1 {
		t.Fatalf("transport calls = %d, want 1 (no write retry)", transport.calls)
	}
}

func TestClientTimeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
	}))
	defer server.Close()

	client, err := NewClient(ClientConfig{
		BaseURL:    server.URL,
		Timeout:    20 * time.Millisecond,
		RetryWait:  time.Millisecond,
		HTTPClient: server.Client(),
		Logger:     zerolog.Nop(),
	})
	if err != nil {
		t.Fatalf("NewClient() error = %v", err)
	}

	_, _, err = client.Request(context.Background(), http.MethodPost, "/api/nodes", map[string]any{})
	if !faults.IsCategory(err, faults.TimeoutError) {
		t.Fatalf("error = %v, want TimeoutError", err)
	}
}

func TestGetOneAbsentIsNil(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`{"message":"not found"}`))
	}))
	defer server.Close()

	client := testClient(t, server)
	resource, err := client.GetOne(context.Background(), "/api/nodes/{uuid}", "abc")
	if err != nil || resource != nil {
		t.Fatalf("GetOne() = %v, %v; want nil, nil", resource, err)
	}
}

func TestGetAllRejectsNonObjectItems(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"response":{"nodes":["uuid-1",{"uuid":"uuid-2"}]}}`))
	}))
	defer server.Close()

	client := testClient(t, server)
	_, err := client.GetAll(context.Background(), "/api/nodes", "nodes")
	if !faults.IsCategory(err, faults.NoListFoundError) {
		t.Fatalf("error = %v, want NoListFoundError", err)
	}
}

func TestExpandPath(t *testing.T) {
	tests := []struct {
		template string
		id       string
		want     string
	}{
		{"/api/nodes/{uuid}", "abc", "/api/nodes/abc"},
		{"/api/nodes", "abc", "/api/nodes"},
		{"/api/nodes/{uuid}", "a/b", "/api/nodes/a%2Fb"},
	}
	for _, tt := range tests {
		if got := ExpandPath(tt.template, tt.id); got != tt.want {
			t.Fatalf("ExpandPath(%q, %q) = %q, want %q", tt.template, tt.id, got, tt.want)
		}
	}
}
