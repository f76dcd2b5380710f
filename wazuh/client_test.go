package wazuh

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"go.uber.org/zap"

	"vigia/config"
	"vigia/core"
)

func testConfig(serverURL string) *config.Config {
	cfg := &config.Config{}
	cfg.Elastic.URL = serverURL
	cfg.Elastic.Index = "wazuh-alerts-*"
	cfg.Elastic.Username = "admin"
	cfg.Elastic.Password = "secret"
	cfg.Elastic.Timeout = 5 * time.Second
	cfg.Elastic.VerifyTLS = true
	return cfg
}

func testLogger() *zap.SugaredLogger {
	logger, _ := zap.NewDevelopment()
	return logger.Sugar()
}

const sampleResponse = `{
	"hits": {
		"total": {"value": 128, "relation": "eq"},
		"hits": [
			{
				"_id": "abc-1",
				"_source": {
					"@timestamp": "2024-03-01T10:00:00.000Z",
					"rule": {"id": "5503", "description": "PAM: User login failed.", "level": 5},
					"agent": {"name": "web-01"},
					"source_ip": "10.0.0.5"
				}
			},
			{
				"_id": "abc-2",
				"_source": {
					"rule": {"level": 7}
				}
			}
		]
	}
}`

func TestSearchRequestShape(t *testing.T) {
	var captured map[string]interface{}
	var gotAuth, gotPath string

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotPath = r.URL.Path
		if err := json.NewDecoder(r.Body).Decode(&captured); err != nil {
			t.Errorf("failed to decode request body: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(sampleResponse))
	}))
	defer server.Close()

	client := NewESClient(testConfig(server.URL), testLogger())

	result, err := client.Search(context.Background(), 50, 10, nil)
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}

	if gotPath != "/wazuh-alerts-*/_search" {
		t.Errorf("unexpected search path: %s", gotPath)
	}

	wantAuth := "Basic " + base64.StdEncoding.EncodeToString([]byte("admin:secret"))
	if gotAuth != wantAuth {
		t.Errorf("unexpected auth header: %s", gotAuth)
	}

	if captured["size"].(float64) != 50 || captured["from"].(float64) != 10 {
		t.Errorf("unexpected paging: size=%v from=%v", captured["size"], captured["from"])
	}

	// Default path must use the range filter, not a term.
	filters := captured["query"].(map[string]interface{})["bool"].(map[string]interface{})["filter"].([]interface{})
	if len(filters) != 1 {
		t.Fatalf("expected exactly one filter, got %d", len(filters))
	}
	if _, ok := filters[0].(map[string]interface{})["range"]; !ok {
		t.Errorf("default level filter should be a range, got %v", filters[0])
	}

	if result.Total != 128 {
		t.Errorf("expected total 128, got %d", result.Total)
	}
	if len(result.Alerts) != 2 {
		t.Fatalf("expected 2 alerts, got %d", len(result.Alerts))
	}
}

func TestSearchExplicitLevelUsesTermFilter(t *testing.T) {
	var captured map[string]interface{}

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewDecoder(r.Body).Decode(&captured)
		w.Write([]byte(`{"hits":{"total":0,"hits":[]}}`))
	}))
	defer server.Close()

	client := NewESClient(testConfig(server.URL), testLogger())

	level := 7
	if _, err := client.Search(context.Background(), 10, 0, &level); err != nil {
		t.Fatalf("Search failed: %v", err)
	}

	filters := captured["query"].(map[string]interface{})["bool"].(map[string]interface{})["filter"].([]interface{})
	term, ok := filters[0].(map[string]interface{})["term"]
	if !ok {
		t.Fatalf("explicit level filter should be a term, got %v", filters[0])
	}
	if term.(map[string]interface{})["rule.level"].(float64) != 7 {
		t.Errorf("term filter should carry the exact level, got %v", term)
	}
}

func TestSearchMappingDefaults(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(sampleResponse))
	}))
	defer server.Close()

	client := NewESClient(testConfig(server.URL), testLogger())

	result, err := client.Search(context.Background(), 50, 0, nil)
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}

	first := result.Alerts[0]
	if first.ID != "abc-1" || first.Level != 5 || first.AgentName != "web-01" {
		t.Errorf("unexpected mapping of full hit: %+v", first)
	}
	if first.Description != "PAM: User login failed." || first.Source != "10.0.0.5" {
		t.Errorf("unexpected mapping of full hit: %+v", first)
	}
	wantTS := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	if !first.Timestamp.Equal(wantTS) {
		t.Errorf("expected timestamp %v, got %v", wantTS, first.Timestamp)
	}

	// Sparse hit gets the documented defaults.
	second := result.Alerts[1]
	if second.AgentName != "unknown" {
		t.Errorf("missing agent should default to unknown, got %q", second.AgentName)
	}
	if second.Description != "" || second.Level != 7 {
		t.Errorf("unexpected sparse mapping: %+v", second)
	}
	if second.Timestamp.IsZero() {
		t.Error("missing timestamp should fall back to fetch time")
	}
}

func TestSearchErrorPaths(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
	}{
		{
			name: "remote 500",
			handler: func(w http.ResponseWriter, r *http.Request) {
				http.Error(w, "index corrupt", http.StatusInternalServerError)
			},
		},
		{
			name: "auth failure",
			handler: func(w http.ResponseWriter, r *http.Request) {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
			},
		},
		{
			name: "malformed body",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.Write([]byte(`{"hits": "not an object"`))
			},
		},
		{
			name: "schema violation",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.Write([]byte(`{"hits":{"hits":[{"_source":{}}]}}`))
			},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			server := httptest.NewServer(tc.handler)
			defer server.Close()

			client := NewESClient(testConfig(server.URL), testLogger())

			_, err := client.Search(context.Background(), 10, 0, nil)
			if err == nil {
				t.Fatal("expected an error")
			}
		})
	}
}

func TestSearchClampsOversizedLimit(t *testing.T) {
	var captured map[string]interface{}

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewDecoder(r.Body).Decode(&captured)
		w.Write([]byte(`{"hits":{"total":0,"hits":[]}}`))
	}))
	defer server.Close()

	client := NewESClient(testConfig(server.URL), testLogger())

	if _, err := client.Search(context.Background(), core.MaxFetchSize*2, 0, nil); err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if captured["size"].(float64) != core.MaxFetchSize {
		t.Errorf("limit should clamp to %d, got %v", core.MaxFetchSize, captured["size"])
	}
}

func TestBareTotalShape(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"hits":{"total":42,"hits":[]}}`))
	}))
	defer server.Close()

	client := NewESClient(testConfig(server.URL), testLogger())

	result, err := client.Search(context.Background(), 10, 0, nil)
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if result.Total != 42 {
		t.Errorf("expected bare total 42, got %d", result.Total)
	}
}
