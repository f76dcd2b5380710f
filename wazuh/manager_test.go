package wazuh

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"vigia/config"
)

func managerConfig(serverURL string) *config.Config {
	cfg := &config.Config{}
	cfg.Wazuh.URL = serverURL
	cfg.Wazuh.Username = "wazuh"
	cfg.Wazuh.Password = "wazuh"
	cfg.Wazuh.Timeout = 5 * time.Second
	return cfg
}

func signedToken(t *testing.T, exp time.Time) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"exp": exp.Unix(),
		"sub": "wazuh",
	})
	signed, err := token.SignedString([]byte("test-secret"))
	if err != nil {
		t.Fatalf("failed to sign token: %v", err)
	}
	return signed
}

func TestNormalizeManagerURL(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"https://wazuh.local", "https://wazuh.local:55000"},
		{"wazuh.local", "https://wazuh.local:55000"},
		{"https://wazuh.local:55000", "https://wazuh.local:55000"},
		{"http://wazuh.local:9999/", "http://wazuh.local:9999"},
	}

	for _, tc := range tests {
		got, err := normalizeManagerURL(tc.in)
		if err != nil {
			t.Errorf("normalizeManagerURL(%q) failed: %v", tc.in, err)
			continue
		}
		if got != tc.want {
			t.Errorf("normalizeManagerURL(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestTokenExchangeAndCache(t *testing.T) {
	authCalls := 0
	tokenValue := ""

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/security/user/authenticate":
			authCalls++
			wantAuth := "Basic " + base64.StdEncoding.EncodeToString([]byte("wazuh:wazuh"))
			if r.Header.Get("Authorization") != wantAuth {
				t.Errorf("unexpected auth header: %s", r.Header.Get("Authorization"))
			}
			json.NewEncoder(w).Encode(map[string]interface{}{
				"data": map[string]string{"token": tokenValue},
			})
		case "/security/alerts/a1":
			if r.Header.Get("Authorization") != "Bearer "+tokenValue {
				t.Errorf("unexpected bearer: %s", r.Header.Get("Authorization"))
			}
			w.Write([]byte(`{"data":{"id":"a1"}}`))
		default:
			http.NotFound(w, r)
		}
	}))
	defer server.Close()

	tokenValue = signedToken(t, time.Now().Add(15*time.Minute))

	cfg := managerConfig(server.URL)
	client, err := NewManagerClient(cfg, testLogger())
	if err != nil {
		t.Fatalf("NewManagerClient failed: %v", err)
	}

	ctx := context.Background()
	if _, err := client.FetchAlertByID(ctx, "a1"); err != nil {
		t.Fatalf("FetchAlertByID failed: %v", err)
	}
	if _, err := client.FetchAlertByID(ctx, "a1"); err != nil {
		t.Fatalf("second FetchAlertByID failed: %v", err)
	}

	// Token still valid, so only one exchange should have happened.
	if authCalls != 1 {
		t.Errorf("expected 1 auth call, got %d", authCalls)
	}
}

func TestExpiredTokenIsReExchanged(t *testing.T) {
	authCalls := 0
	var tokenValue string

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/security/user/authenticate" {
			authCalls++
			json.NewEncoder(w).Encode(map[string]interface{}{
				"data": map[string]string{"token": tokenValue},
			})
			return
		}
		w.Write([]byte(`{}`))
	}))
	defer server.Close()

	// Already inside the one-minute slack window, so treated as expired.
	tokenValue = signedToken(t, time.Now().Add(30*time.Second))

	client, err := NewManagerClient(managerConfig(server.URL), testLogger())
	if err != nil {
		t.Fatalf("NewManagerClient failed: %v", err)
	}

	ctx := context.Background()
	client.Get(ctx, "/agents")
	client.Get(ctx, "/agents")

	if authCalls != 2 {
		t.Errorf("expired token should force re-exchange, got %d auth calls", authCalls)
	}
}

func TestUnconfiguredManager(t *testing.T) {
	cfg := &config.Config{}
	if _, err := NewManagerClient(cfg, testLogger()); err != ErrManagerUnconfigured {
		t.Errorf("expected ErrManagerUnconfigured, got %v", err)
	}
}
