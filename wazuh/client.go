package wazuh

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"vigia/config"
	"vigia/core"
)

var (
	// ErrFetchFailed wraps any transport, auth, or remote-side error.
	// The sync path treats every flavor the same way: one opaque fetch
	// failure, no partial batch.
	ErrFetchFailed = errors.New("remote alert fetch failed")

	// ErrParseFailed wraps malformed response bodies.
	ErrParseFailed = errors.New("remote response parse failed")
)

// maxErrorBodyPreview bounds how much of a remote error body is kept in
// the error message.
const maxErrorBodyPreview = 512

// ESClient queries the Elasticsearch index that holds Wazuh alerts. It
// replaces the SSH shell-out the dashboard historically used with a
// direct authenticated _search call.
type ESClient struct {
	baseURL    string
	index      string
	username   string
	password   string
	httpClient *http.Client
	logger     *zap.SugaredLogger
}

// SearchResult is a fetched batch: the mapped alerts plus the remote
// total for the query.
type SearchResult struct {
	Alerts []core.Alert
	Total  int64
	// RawHits preserves the untouched hit documents for passthrough
	// responses that must keep the original nested shape.
	RawHits []json.RawMessage
}

// NewESClient creates an Elasticsearch client from configuration.
func NewESClient(cfg *config.Config, logger *zap.SugaredLogger) *ESClient {
	transport := &http.Transport{}
	if !cfg.Elastic.VerifyTLS {
		// Wazuh deployments ship self-signed certificates on the
		// indexer; verification is opt-in.
		transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true}
	}

	return &ESClient{
		baseURL:  strings.TrimRight(cfg.Elastic.URL, "/"),
		index:    cfg.Elastic.Index,
		username: cfg.Elastic.Username,
		password: cfg.Elastic.Password,
		httpClient: &http.Client{
			Timeout:   cfg.Elastic.Timeout,
			Transport: transport,
		},
		logger: logger,
	}
}

// buildQuery assembles the _search payload. With no explicit level the
// default filter is the range rule.level >= DefaultMinLevel; an explicit
// level switches to an exact term match. The asymmetry is intentional
// and mirrors what the dashboard always did.
func buildQuery(limit, offset int, level *int) map[string]interface{} {
	var levelFilter map[string]interface{}
	if level != nil {
		levelFilter = map[string]interface{}{
			"term": map[string]interface{}{"rule.level": *level},
		}
	} else {
		levelFilter = map[string]interface{}{
			"range": map[string]interface{}{
				"rule.level": map[string]interface{}{"gte": core.DefaultMinLevel},
			},
		}
	}

	return map[string]interface{}{
		"query": map[string]interface{}{
			"bool": map[string]interface{}{
				"filter": []interface{}{levelFilter},
			},
		},
		"size": limit,
		"from": offset,
		"sort": []interface{}{
			map[string]interface{}{"@timestamp": map[string]interface{}{"order": "desc"}},
		},
	}
}

// Search fetches one page of alerts ordered by timestamp descending.
// Any transport, auth, or parse failure is surfaced as a single fetch
// error; a failed call yields zero records.
func (c *ESClient) Search(ctx context.Context, limit, offset int, level *int) (*SearchResult, error) {
	if limit <= 0 {
		return nil, fmt.Errorf("%w: limit must be positive, got %d", ErrFetchFailed, limit)
	}
	if limit > core.MaxFetchSize {
		limit = core.MaxFetchSize
	}
	if offset < 0 {
		offset = 0
	}

	payload, err := json.Marshal(buildQuery(limit, offset, level))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFetchFailed, err)
	}

	reqURL := fmt.Sprintf("%s/%s/_search", c.baseURL, c.index)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, reqURL, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFetchFailed, err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.username != "" {
		req.SetBasicAuth(c.username, c.password)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFetchFailed, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: reading response: %v", ErrFetchFailed, err)
	}

	if resp.StatusCode != http.StatusOK {
		preview := string(body)
		if len(preview) > maxErrorBodyPreview {
			preview = preview[:maxErrorBodyPreview]
		}
		return nil, fmt.Errorf("%w: elasticsearch returned HTTP %d: %s", ErrFetchFailed, resp.StatusCode, preview)
	}

	result, err := parseSearchResponse(body)
	if err != nil {
		return nil, err
	}

	c.logger.Debugw("Fetched remote alerts",
		"count", len(result.Alerts),
		"total", result.Total,
		"limit", limit,
		"offset", offset)

	return result, nil
}
