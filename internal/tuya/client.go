// SPDX-License-Identifier: GPL-3.0-only

package tuya

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"
)

// ErrNotAuthenticated is returned when a request is made before Login.
var ErrNotAuthenticated = errors.New("not authenticated")

// ErrDeviceNotFound is returned when the API has no data for a device.
var ErrDeviceNotFound = errors.New("device not found")

const (
	// DefaultRegion is used until a token reveals the account's region.
	DefaultRegion = "us"

	// defaultTimeout bounds every HTTP round trip.
	defaultTimeout = 10 * time.Second

	// queryInterval is the minimum spacing between device queries.
	// The API answers faster polling with FrequentlyInvoke.
	queryInterval = 2 * time.Second

	// queryBurst allows a few queries in quick succession at startup.
	queryBurst = 3

	// tokenRefreshMargin refreshes tokens slightly before they expire.
	tokenRefreshMargin = time.Minute

	codeSuccess = "SUCCESS"
)

// Platform is the Tuya-based app the account was created with.
type Platform string

const (
	// PlatformTuya is the Tuya Smart app.
	PlatformTuya Platform = "tuya"
	// PlatformSmartLife is the Smart Life app.
	PlatformSmartLife Platform = "smart_life"
	// PlatformJinvoo is the Jinvoo Smart app.
	PlatformJinvoo Platform = "jinvoo_smart"
)

// Credentials identify a Tuya account.
type Credentials struct {
	Username    string
	Password    string
	CountryCode string
	Platform    Platform
	// Region selects the login endpoint. Later requests follow the token.
	Region string
}

// APIError is returned when the API answers with a non-success code.
type APIError struct {
	Code    string
	Message string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("tuya api error: %s", e.Code)
	}
	return fmt.Sprintf("tuya api error: %s: %s", e.Code, e.Message)
}

type session struct {
	accessToken  string
	refreshToken string
	expiresAt    time.Time
	region       string
}

// Client talks to the Tuya Web API.
// All methods are safe for concurrent use.
type Client struct {
	creds      Credentials
	httpClient *http.Client
	baseURL    string // empty means derived from region
	limiter    *rate.Limiter
	now        func() time.Time

	mu      sync.Mutex
	session *session
}

// ClientOption is a functional option for configuring a Client.
type ClientOption func(*Client)

// WithHTTPClient sets the HTTP client used for requests.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// WithBaseURL pins the API endpoint instead of deriving it from the region.
func WithBaseURL(u string) ClientOption {
	return func(c *Client) {
		c.baseURL = strings.TrimRight(u, "/")
	}
}

// WithQueryLimit overrides the device query rate limit.
func WithQueryLimit(every time.Duration, burst int) ClientOption {
	return func(c *Client) {
		c.limiter = rate.NewLimiter(rate.Every(every), burst)
	}
}

// WithClock sets the time source used for token expiry.
func WithClock(now func() time.Time) ClientOption {
	return func(c *Client) {
		c.now = now
	}
}

// NewClient creates a new Tuya Web API client.
func NewClient(creds Credentials, opts ...ClientOption) *Client {
	if creds.Platform == "" {
		creds.Platform = PlatformTuya
	}
	if creds.Region == "" {
		creds.Region = DefaultRegion
	}
	c := &Client{
		creds:      creds,
		httpClient: &http.Client{Timeout: defaultTimeout},
		limiter:    rate.NewLimiter(rate.Every(queryInterval), queryBurst),
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// RegionFromToken derives the API region from an access token prefix.
func RegionFromToken(token string) string {
	switch {
	case strings.HasPrefix(token, "AY"):
		return "cn"
	case strings.HasPrefix(token, "EU"):
		return "eu"
	case strings.HasPrefix(token, "US"):
		return "us"
	default:
		return DefaultRegion
	}
}

func (c *Client) endpoint(region string) string {
	if c.baseURL != "" {
		return c.baseURL
	}
	return fmt.Sprintf("https://px1.tuya%s.com", region)
}

type tokenResponse struct {
	AccessToken    string `json:"access_token"`
	RefreshToken   string `json:"refresh_token"`
	ExpiresIn      int    `json:"expires_in"`
	ResponseStatus string `json:"responseStatus"`
	ErrorMsg       string `json:"errorMsg"`
}

func (c *Client) storeToken(tr *tokenResponse) error {
	if tr.ResponseStatus == "error" || tr.AccessToken == "" {
		return &APIError{Code: "AuthFailed", Message: tr.ErrorMsg}
	}
	c.session = &session{
		accessToken:  tr.AccessToken,
		refreshToken: tr.RefreshToken,
		expiresAt:    c.now().Add(time.Duration(tr.ExpiresIn) * time.Second),
		region:       RegionFromToken(tr.AccessToken),
	}
	return nil
}

// Login authenticates with the account credentials.
func (c *Client) Login(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.loginLocked(ctx)
}

func (c *Client) loginLocked(ctx context.Context) error {
	form := url.Values{}
	form.Set("userName", c.creds.Username)
	form.Set("password", c.creds.Password)
	form.Set("countryCode", c.creds.CountryCode)
	form.Set("bizType", string(c.creds.Platform))
	form.Set("from", "tuya")

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.endpoint(c.creds.Region)+"/homeassistant/auth.do", strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("failed to build auth request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	var tr tokenResponse
	if err := c.do(req, &tr); err != nil {
		return fmt.Errorf("failed to authenticate: %w", err)
	}
	if err := c.storeToken(&tr); err != nil {
		return err
	}

	log.Info().Str("region", c.session.region).Msg("Authenticated with Tuya Web API")
	return nil
}

func (c *Client) refreshLocked(ctx context.Context) error {
	q := url.Values{}
	q.Set("grant_type", "refresh_token")
	q.Set("refresh_token", c.session.refreshToken)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		c.endpoint(c.session.region)+"/homeassistant/access.do?"+q.Encode(), nil)
	if err != nil {
		return fmt.Errorf("failed to build refresh request: %w", err)
	}

	var tr tokenResponse
	if err := c.do(req, &tr); err != nil {
		return fmt.Errorf("failed to refresh token: %w", err)
	}
	if err := c.storeToken(&tr); err != nil {
		return err
	}

	log.Debug().Msg("Refreshed Tuya access token")
	return nil
}

// token returns a valid access token and region, refreshing if needed.
func (c *Client) token(ctx context.Context) (string, string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.session == nil {
		return "", "", ErrNotAuthenticated
	}
	if c.now().Add(tokenRefreshMargin).After(c.session.expiresAt) {
		if err := c.refreshLocked(ctx); err != nil {
			log.Warn().Err(err).Msg("Token refresh failed, logging in again")
			if err := c.loginLocked(ctx); err != nil {
				return "", "", err
			}
		}
	}
	return c.session.accessToken, c.session.region, nil
}

type skillHeader struct {
	Name           string `json:"name"`
	Namespace      string `json:"namespace"`
	PayloadVersion int    `json:"payloadVersion"`
	Code           string `json:"code,omitempty"`
	Msg            string `json:"msg,omitempty"`
}

type skillRequest struct {
	Header  skillHeader    `json:"header"`
	Payload map[string]any `json:"payload"`
}

type skillResponse struct {
	Header  skillHeader     `json:"header"`
	Payload json.RawMessage `json:"payload"`
}

func (c *Client) skill(ctx context.Context, namespace, name string, payload map[string]any, out any) error {
	token, region, err := c.token(ctx)
	if err != nil {
		return err
	}

	if payload == nil {
		payload = map[string]any{}
	}
	payload["accessToken"] = token

	body, err := json.Marshal(skillRequest{
		Header:  skillHeader{Name: name, Namespace: namespace, PayloadVersion: 1},
		Payload: payload,
	})
	if err != nil {
		return fmt.Errorf("failed to encode %s request: %w", name, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.endpoint(region)+"/homeassistant/skill", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to build %s request: %w", name, err)
	}
	req.Header.Set("Content-Type", "application/json")

	var resp skillResponse
	if err := c.do(req, &resp); err != nil {
		return fmt.Errorf("%s request failed: %w", name, err)
	}
	if resp.Header.Code != codeSuccess {
		return &APIError{Code: resp.Header.Code, Message: resp.Header.Msg}
	}
	if out == nil || len(resp.Payload) == 0 {
		return nil
	}
	if err := json.Unmarshal(resp.Payload, out); err != nil {
		return fmt.Errorf("failed to decode %s payload: %w", name, err)
	}
	return nil
}

func (c *Client) do(req *http.Request, out any) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := resp.Body.Close(); closeErr != nil {
			log.Debug().Err(closeErr).Msg("Failed to close response body")
		}
	}()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %d: %s", resp.StatusCode, strings.TrimSpace(string(data)))
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

// Discover lists all devices linked to the account.
func (c *Client) Discover(ctx context.Context) ([]Device, error) {
	var payload struct {
		Devices []Device `json:"devices"`
	}
	if err := c.skill(ctx, "discovery", "Discovery", nil, &payload); err != nil {
		return nil, err
	}
	log.Debug().Int("count", len(payload.Devices)).Msg("Discovered devices")
	return payload.Devices, nil
}

// QueryDevice fetches the current state of a device.
// Queries are throttled to stay under the API's invocation limit.
func (c *Client) QueryDevice(ctx context.Context, deviceID string) (*DeviceState, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("query throttled: %w", err)
	}

	var payload struct {
		Data *DeviceState `json:"data"`
	}
	err := c.skill(ctx, "query", "QueryDevice", map[string]any{"devId": deviceID}, &payload)
	if err != nil {
		return nil, err
	}
	if payload.Data == nil {
		return nil, fmt.Errorf("%w: %s", ErrDeviceNotFound, deviceID)
	}
	return payload.Data, nil
}

// Control issues a command such as brightnessSet to a device.
func (c *Client) Control(ctx context.Context, deviceID, command string, payload Payload) error {
	body := map[string]any{"devId": deviceID}
	for k, v := range payload {
		body[k] = v
	}
	if err := c.skill(ctx, "control", command, body, nil); err != nil {
		return err
	}
	log.Debug().Str("device", deviceID).Str("command", command).Msg("Sent device command")
	return nil
}
