package github

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/json"
	"encoding/pem"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

var (
	testKeyOnce sync.Once
	testKey     *rsa.PrivateKey
)

func testPrivateKey(t *testing.T) *rsa.PrivateKey {
	t.Helper()
	testKeyOnce.Do(func() {
		key, err := rsa.GenerateKey(rand.Reader, 2048)
		if err != nil {
			panic(err)
		}
		testKey = key
	})
	return testKey
}

func testKeyPEM(t *testing.T) []byte {
	return pem.EncodeToMemory(&pem.Block{Type: "RSA PRIVATE KEY", Bytes: x509.MarshalPKCS1PrivateKey(testPrivateKey(t))})
}

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTestClock() *testClock {
	return &testClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

// fakeGitHub serves the installation token endpoint and whatever routes a
// test registers on mux. Tokens are ghs_test_<n> and live one hour from the
// test clock's current time.
type fakeGitHub struct {
	mux   *http.ServeMux
	srv   *httptest.Server
	clock *testClock

	tokenCalls atomic.Int32
	// tokenFailures makes the next n exchanges fail with HTTP 500.
	tokenFailures atomic.Int32
}

func newFakeGitHub(t *testing.T) *fakeGitHub {
	t.Helper()
	f := &fakeGitHub{mux: http.NewServeMux(), clock: newTestClock()}
	f.mux.HandleFunc("POST /app/installations/{id}/access_tokens", func(w http.ResponseWriter, r *http.Request) {
		if r.PathValue("id") != "456" {
			writeTestJSON(w, http.StatusNotFound, map[string]any{"message": "Not Found"})
			return
		}
		if !strings.HasPrefix(r.Header.Get("Authorization"), "Bearer ey") {
			writeTestJSON(w, http.StatusUnauthorized, map[string]any{"message": "A JSON web token could not be decoded"})
			return
		}
		if f.tokenFailures.Load() > 0 {
			f.tokenFailures.Add(-1)
			writeTestJSON(w, http.StatusInternalServerError, map[string]any{"message": "exchange unavailable"})
			return
		}
		n := f.tokenCalls.Add(1)
		writeTestJSON(w, http.StatusCreated, map[string]any{
			"token":      fmt.Sprintf("ghs_test_%d", n),
			"expires_at": f.clock.Now().Add(time.Hour).Format(time.RFC3339),
		})
	})
	f.srv = httptest.NewServer(f.mux)
	t.Cleanup(f.srv.Close)
	return f
}

func (f *fakeGitHub) broker(t *testing.T) *Broker {
	t.Helper()
	b, err := NewBroker(AppIdentity{AppID: 123, InstallationID: 456, PrivateKey: testKeyPEM(t)}, BrokerOptions{
		APIURL:     f.srv.URL + "/",
		HTTPClient: f.srv.Client(),
		Logger:     slog.New(slog.DiscardHandler),
		Now:        f.clock.Now,
	})
	if err != nil {
		t.Fatalf("new broker: %v", err)
	}
	return b
}

func (f *fakeGitHub) client(t *testing.T) *Client {
	t.Helper()
	c, err := NewClient(f.broker(t), f.srv.URL+"/")
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	return c
}

func writeTestJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
