package wazuh

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"

	"vigia/config"
)

// defaultManagerPort is appended when the configured manager URL has no
// explicit port.
const defaultManagerPort = "55000"

var ErrManagerUnconfigured = errors.New("wazuh manager API not configured")

// ManagerClient talks to the Wazuh manager REST API. The manager issues
// short-lived bearer tokens in exchange for basic auth; the token is
// cached until its JWT exp claim.
type ManagerClient struct {
	baseURL     string
	username    string
	password    string
	staticToken string
	httpClient  *http.Client
	logger      *zap.SugaredLogger

	mu          sync.Mutex
	cachedToken string
	tokenExpiry time.Time
}

// NewManagerClient creates a manager API client. Returns an error when
// no manager URL is configured; callers treat that as "feature off".
func NewManagerClient(cfg *config.Config, logger *zap.SugaredLogger) (*ManagerClient, error) {
	if cfg.Wazuh.URL == "" {
		return nil, ErrManagerUnconfigured
	}

	base, err := normalizeManagerURL(cfg.Wazuh.URL)
	if err != nil {
		return nil, fmt.Errorf("invalid wazuh.url: %w", err)
	}

	return &ManagerClient{
		baseURL:     base,
		username:    cfg.Wazuh.Username,
		password:    cfg.Wazuh.Password,
		staticToken: cfg.Wazuh.Token,
		httpClient: &http.Client{
			Timeout: cfg.Wazuh.Timeout,
			Transport: &http.Transport{
				TLSClientConfig: &tls.Config{InsecureSkipVerify: true},
			},
		},
		logger: logger,
	}, nil
}

// normalizeManagerURL ensures a scheme and the default manager port.
func normalizeManagerURL(raw string) (string, error) {
	if !strings.HasPrefix(raw, "http://") && !strings.HasPrefix(raw, "https://") {
		raw = "https://" + raw
	}
	u, err := url.Parse(raw)
	if err != nil {
		return "", err
	}
	if u.Port() == "" {
		u.Host = u.Hostname() + ":" + defaultManagerPort
	}
	return strings.TrimRight(u.String(), "/"), nil
}

// token returns a usable bearer token, exchanging credentials when the
// cache is empty or expired. An explicitly configured token always wins.
func (m *ManagerClient) token(ctx context.Context) (string, error) {
	if m.staticToken != "" {
		return m.staticToken, nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.cachedToken != "" && (m.tokenExpiry.IsZero() || time.Now().Before(m.tokenExpiry)) {
		return m.cachedToken, nil
	}

	if m.username == "" || m.password == "" {
		return "", fmt.Errorf("%w: no token and no credentials", ErrManagerUnconfigured)
	}

	reqURL := m.baseURL + "/security/user/authenticate?raw=false"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, reqURL, nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	req.SetBasicAuth(m.username, m.password)

	resp, err := m.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrFetchFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodyPreview))
		return "", fmt.Errorf("%w: auth returned HTTP %d: %s", ErrFetchFailed, resp.StatusCode, string(body))
	}

	var envelope struct {
		Data struct {
			Token string `json:"token"`
		} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return "", fmt.Errorf("%w: %v", ErrParseFailed, err)
	}
	if envelope.Data.Token == "" {
		return "", fmt.Errorf("%w: manager returned no token", ErrFetchFailed)
	}

	m.cachedToken = envelope.Data.Token
	m.tokenExpiry = tokenExpiry(envelope.Data.Token)
	m.logger.Debugw("Obtained Wazuh manager token", "expires", m.tokenExpiry)

	return m.cachedToken, nil
}

// tokenExpiry extracts the exp claim from the manager's JWT. The token
// is not verified here; the claim is only a cache-invalidation hint and
// the manager remains the authority. A minute of slack avoids using a
// token right at its edge.
func tokenExpiry(token string) time.Time {
	parsed, _, err := jwt.NewParser().ParseUnverified(token, jwt.MapClaims{})
	if err != nil {
		return time.Time{}
	}
	exp, err := parsed.Claims.GetExpirationTime()
	if err != nil || exp == nil {
		return time.Time{}
	}
	return exp.Time.Add(-time.Minute)
}

// Get performs an authenticated GET against the manager API and returns
// the raw JSON body.
func (m *ManagerClient) Get(ctx context.Context, path string) (json.RawMessage, error) {
	token, err := m.token(ctx)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, m.baseURL+path, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := m.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFetchFailed, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFetchFailed, err)
	}

	if resp.StatusCode != http.StatusOK {
		preview := string(body)
		if len(preview) > maxErrorBodyPreview {
			preview = preview[:maxErrorBodyPreview]
		}
		return nil, fmt.Errorf("%w: manager returned HTTP %d: %s", ErrFetchFailed, resp.StatusCode, preview)
	}

	return body, nil
}

// FetchAlertByID looks a single alert up on the manager API.
func (m *ManagerClient) FetchAlertByID(ctx context.Context, id string) (json.RawMessage, error) {
	if id == "" {
		return nil, fmt.Errorf("%w: alert id is required", ErrFetchFailed)
	}
	return m.Get(ctx, "/security/alerts/"+url.PathEscape(id))
}
