// Package arcgis provides a client for the ArcGIS Online sharing and
// feature service REST APIs.
package arcgis

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"

	"github.com/sells-group/auditor-cli/internal/resilience"
)

// Option configures the client.
type Option func(*Client)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.http = hc
	}
}

// WithRateLimit overrides the default request rate (5 req/s). Zero disables
// throttling.
func WithRateLimit(rps float64) Option {
	return func(c *Client) {
		if rps > 0 {
			c.limiter = rate.NewLimiter(rate.Limit(rps), max(int(rps), 1))
		} else {
			c.limiter = nil
		}
	}
}

// WithReferer sets the referer tokens are bound to.
func WithReferer(referer string) Option {
	return func(c *Client) {
		c.referer = referer
	}
}

// WithTokenExpiration sets how long requested tokens stay valid.
func WithTokenExpiration(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.expiration = d
		}
	}
}

// WithPageSize sets the page size for paged listings.
func WithPageSize(n int) Option {
	return func(c *Client) {
		if n > 0 {
			c.pageSize = n
		}
	}
}

// Client talks to one portal as one user. Tokens are generated on first use
// and refreshed when they expire or are rejected.
type Client struct {
	portalURL  string
	username   string
	password   string
	referer    string
	expiration time.Duration
	pageSize   int
	http       *http.Client
	limiter    *rate.Limiter
	now        func() time.Time

	mu           sync.Mutex
	token        string
	tokenExpires time.Time
}

// NewClient creates a client for the portal at portalURL, e.g.
// https://utah.maps.arcgis.com. An empty username makes anonymous requests.
func NewClient(portalURL, username, password string, opts ...Option) *Client {
	c := &Client{
		portalURL:  strings.TrimRight(portalURL, "/"),
		username:   username,
		password:   password,
		referer:    "https://www.arcgis.com",
		expiration: 2 * time.Hour,
		pageSize:   100,
		http: &http.Client{
			Timeout: 60 * time.Second,
			Transport: &http.Transport{
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		limiter: rate.NewLimiter(5, 5),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Username returns the signed in user.
func (c *Client) Username() string {
	return c.username
}

// restURL builds a sharing API URL from path segments.
func (c *Client) restURL(parts ...string) string {
	escaped := make([]string, len(parts))
	for i, p := range parts {
		escaped[i] = url.PathEscape(p)
	}
	return c.portalURL + "/sharing/rest/" + strings.Join(escaped, "/")
}

// wait blocks until the rate limiter allows one event, or ctx is cancelled.
func (c *Client) wait(ctx context.Context) error {
	if c.limiter == nil {
		return nil
	}
	return c.limiter.Wait(ctx)
}

type tokenResponse struct {
	Token   string `json:"token"`
	Expires int64  `json:"expires"`
}

// accessToken returns a cached token or generates a new one. Anonymous
// clients get the empty token.
func (c *Client) accessToken(ctx context.Context) (string, error) {
	if c.username == "" {
		return "", nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.token != "" && c.now().Add(time.Minute).Before(c.tokenExpires) {
		return c.token, nil
	}

	form := url.Values{}
	form.Set("username", c.username)
	form.Set("password", c.password)
	form.Set("client", "referer")
	form.Set("referer", c.referer)
	form.Set("expiration", strconv.Itoa(int(c.expiration.Minutes())))

	var resp tokenResponse
	if err := c.send(ctx, http.MethodPost, c.restURL("generateToken"), form, &resp); err != nil {
		return "", eris.Wrap(err, "arcgis: generate token")
	}
	if resp.Token == "" {
		return "", eris.New("arcgis: generate token: empty token in response")
	}

	c.token = resp.Token
	if resp.Expires > 0 {
		c.tokenExpires = time.UnixMilli(resp.Expires)
	} else {
		c.tokenExpires = c.now().Add(c.expiration)
	}
	return c.token, nil
}

func (c *Client) resetToken() {
	c.mu.Lock()
	c.token = ""
	c.mu.Unlock()
}

// call sends an authenticated form request and decodes the JSON response
// into out. A rejected token is dropped and reported as transient so the
// caller's retry picks up a fresh one.
func (c *Client) call(ctx context.Context, method, endpoint string, params url.Values, out any) error {
	if params == nil {
		params = url.Values{}
	}
	token, err := c.accessToken(ctx)
	if err != nil {
		return err
	}
	if token != "" {
		params.Set("token", token)
	}
	return c.checkToken(c.send(ctx, method, endpoint, params, out))
}

func (c *Client) checkToken(err error) error {
	if apiErr, ok := asAPIError(err); ok && apiErr.invalidToken() {
		c.resetToken()
		return resilience.NewTransientError(err, apiErr.Code)
	}
	return err
}

// send builds a GET with query parameters or a form encoded POST.
func (c *Client) send(ctx context.Context, method, endpoint string, params url.Values, out any) error {
	params.Set("f", "json")

	var (
		req *http.Request
		err error
	)
	if method == http.MethodGet {
		req, err = http.NewRequestWithContext(ctx, method, endpoint+"?"+params.Encode(), nil)
	} else {
		req, err = http.NewRequestWithContext(ctx, method, endpoint, strings.NewReader(params.Encode()))
	}
	if err != nil {
		return eris.Wrap(err, "arcgis: create request")
	}
	if method != http.MethodGet {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}

	body, err := c.fetch(ctx, req)
	if err != nil {
		return err
	}
	return decode(body, out)
}

// upload posts params plus one file part as multipart form data.
func (c *Client) upload(ctx context.Context, endpoint string, params url.Values, field, filename string, content io.Reader, out any) error {
	if params == nil {
		params = url.Values{}
	}
	token, err := c.accessToken(ctx)
	if err != nil {
		return err
	}
	if token != "" {
		params.Set("token", token)
	}
	params.Set("f", "json")

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	for key, values := range params {
		for _, v := range values {
			if err := w.WriteField(key, v); err != nil {
				return eris.Wrap(err, "arcgis: write form field")
			}
		}
	}
	part, err := w.CreateFormFile(field, filename)
	if err != nil {
		return eris.Wrap(err, "arcgis: create form file")
	}
	if _, err := io.Copy(part, content); err != nil {
		return eris.Wrap(err, "arcgis: copy upload content")
	}
	if err := w.Close(); err != nil {
		return eris.Wrap(err, "arcgis: close multipart writer")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, &buf)
	if err != nil {
		return eris.Wrap(err, "arcgis: create request")
	}
	req.Header.Set("Content-Type", w.FormDataContentType())

	body, err := c.fetch(ctx, req)
	if err != nil {
		return c.checkToken(err)
	}
	return c.checkToken(decode(body, out))
}

// fetch performs req and returns the body. Network failures, 429 and 5xx
// responses come back as transient errors; other 4xx responses as *APIError.
func (c *Client) fetch(ctx context.Context, req *http.Request) ([]byte, error) {
	if err := c.wait(ctx); err != nil {
		return nil, eris.Wrap(err, "arcgis: rate limit wait")
	}
	if c.referer != "" {
		req.Header.Set("Referer", c.referer)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, resilience.NewTransientError(eris.Wrapf(err, "arcgis: %s %s", req.Method, req.URL.Path), 0)
	}
	defer resp.Body.Close() //nolint:errcheck

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, eris.Wrap(err, "arcgis: read response body")
	}

	if resilience.IsTransientHTTPStatus(resp.StatusCode) {
		return nil, resilience.NewTransientError(
			eris.Errorf("arcgis: %s %s: status %d: %s", req.Method, req.URL.Path, resp.StatusCode, truncate(body)),
			resp.StatusCode,
		)
	}
	if resp.StatusCode >= http.StatusBadRequest {
		return nil, &APIError{Code: resp.StatusCode, Message: truncate(body)}
	}
	return body, nil
}

// decode unpacks an error envelope or the expected payload.
func decode(body []byte, out any) error {
	var envelope struct {
		Error *APIError `json:"error"`
	}
	if err := json.Unmarshal(body, &envelope); err == nil && envelope.Error != nil {
		if resilience.IsTransientHTTPStatus(envelope.Error.Code) {
			return resilience.NewTransientError(envelope.Error, envelope.Error.Code)
		}
		return envelope.Error
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return eris.Wrapf(err, "arcgis: decode response: %s", truncate(body))
	}
	return nil
}
