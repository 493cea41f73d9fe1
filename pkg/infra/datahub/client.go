package datahub

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/catalogsync/pkg/domain/interfaces"
	"github.com/secmon-lab/catalogsync/pkg/domain/model"
	"github.com/secmon-lab/catalogsync/pkg/domain/types"
	"github.com/secmon-lab/catalogsync/pkg/utils"
	"golang.org/x/time/rate"
)

const (
	DefaultTimeout   = 30 * time.Second
	DefaultRateLimit = 10.0

	// maxErrorBody is max length of response body kept in error values
	maxErrorBody = 1024
)

// Client is a client of DataHub GMS REST API.
type Client struct {
	endpoint  *url.URL
	token     types.Secret
	timeout   time.Duration
	rateLimit float64
	transport http.RoundTripper
}

type Option func(*Client)

func WithToken(token types.Secret) Option {
	return func(c *Client) {
		c.token = token
	}
}

func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.timeout = d
	}
}

// WithRateLimit sets max requests per second. Zero or negative value disables the limit.
func WithRateLimit(rps float64) Option {
	return func(c *Client) {
		c.rateLimit = rps
	}
}

func WithTransport(transport http.RoundTripper) Option {
	return func(c *Client) {
		c.transport = transport
	}
}

func New(endpoint string, options ...Option) (*Client, error) {
	u, err := url.Parse(strings.TrimRight(endpoint, "/"))
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, goerr.Wrap(types.ErrInvalidOption, "catalog endpoint must be http(s) URL", goerr.V("endpoint", endpoint))
	}

	c := &Client{
		endpoint:  u,
		timeout:   DefaultTimeout,
		rateLimit: DefaultRateLimit,
		transport: http.DefaultTransport,
	}
	for _, opt := range options {
		opt(c)
	}

	return c, nil
}

func (x *Client) Endpoint() string { return x.endpoint.String() }

// Open creates a session with its own HTTP client. Idle connections are released by Close.
func (x *Client) Open(ctx context.Context) (interfaces.CatalogSession, error) {
	limit := rate.Inf
	if x.rateLimit > 0 {
		limit = rate.Limit(x.rateLimit)
	}

	return &Session{
		client: x,
		http: &http.Client{
			Timeout:   x.timeout,
			Transport: x.transport,
		},
		limiter: rate.NewLimiter(limit, 1),
	}, nil
}

var _ interfaces.Catalog = &Client{}

type Session struct {
	client  *Client
	http    *http.Client
	limiter *rate.Limiter
}

// url joins endpoint and path. path must be escaped already.
func (x *Session) url(path string, query url.Values) string {
	u := x.client.endpoint.String() + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	return u
}

type response struct {
	status int
	body   []byte
}

func (x *Session) do(ctx context.Context, method, path string, query url.Values, body []byte) (*response, error) {
	if err := x.limiter.Wait(ctx); err != nil {
		return nil, goerr.Wrap(err, "rate limiter is interrupted")
	}

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	reqURL := x.url(path, query)
	req, err := http.NewRequestWithContext(ctx, method, reqURL, reader)
	if err != nil {
		return nil, goerr.Wrap(types.ErrPermanentDelivery, "failed to create request", goerr.V("url", reqURL), goerr.V("error", err.Error()))
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", types.AppName+"/"+types.AppVersion)
	req.Header.Set("X-RestLi-Protocol-Version", "2.0.0")
	if x.client.token != "" {
		req.Header.Set("Authorization", "Bearer "+x.client.token.Unsafe())
	}

	resp, err := x.http.Do(req)
	if err != nil {
		// Network level failure is transient and also means the catalog is unreachable.
		return nil, goerr.Wrap(fmt.Errorf("%w: %w", types.ErrTransientDelivery, types.ErrConnection),
			"failed to send request", goerr.V("method", method), goerr.V("url", reqURL), goerr.V("error", err.Error()))
	}
	defer utils.SafeClose(ctx, resp.Body)

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, goerr.Wrap(fmt.Errorf("%w: %w", types.ErrTransientDelivery, types.ErrConnection),
			"failed to read response", goerr.V("method", method), goerr.V("url", reqURL), goerr.V("error", err.Error()))
	}

	return &response{status: resp.StatusCode, body: respBody}, nil
}

// statusError classifies non-2xx status. 429 and 5xx are transient, other codes are permanent.
func statusError(resp *response, method, path string) error {
	body := string(resp.body)
	if len(body) > maxErrorBody {
		body = body[:maxErrorBody]
	}

	sentinel := types.ErrPermanentDelivery
	if resp.status == http.StatusTooManyRequests || resp.status >= 500 {
		sentinel = types.ErrTransientDelivery
	}

	return goerr.Wrap(sentinel, "catalog service returned error status",
		goerr.V("method", method),
		goerr.V("path", path),
		goerr.V("status", resp.status),
		goerr.V("body", body),
	)
}

func isSuccess(status int) bool {
	return status >= 200 && status < 300
}

func (x *Session) Health(ctx context.Context) error {
	resp, err := x.do(ctx, http.MethodGet, "/health", nil, nil)
	if err != nil {
		return err
	}
	if !isSuccess(resp.status) {
		return statusError(resp, http.MethodGet, "/health")
	}
	return nil
}

func (x *Session) Config(ctx context.Context) (map[string]any, error) {
	resp, err := x.do(ctx, http.MethodGet, "/config", nil, nil)
	if err != nil {
		return nil, err
	}
	if !isSuccess(resp.status) {
		return nil, statusError(resp, http.MethodGet, "/config")
	}

	var cfg map[string]any
	if err := json.Unmarshal(resp.body, &cfg); err != nil {
		return nil, goerr.Wrap(types.ErrPermanentDelivery, "failed to decode config response", goerr.V("error", err.Error()))
	}
	return cfg, nil
}

func (x *Session) Ingest(ctx context.Context, envelopes []*model.Envelope) error {
	body, err := json.Marshal(&model.IngestRequest{Elements: envelopes})
	if err != nil {
		return goerr.Wrap(types.ErrPermanentDelivery, "failed to encode envelopes", goerr.V("error", err.Error()))
	}

	query := url.Values{"action": []string{"ingest"}}
	resp, err := x.do(ctx, http.MethodPost, "/entities", query, body)
	if err != nil {
		return err
	}
	if !isSuccess(resp.status) {
		return statusError(resp, http.MethodPost, "/entities?action=ingest")
	}

	return nil
}

func (x *Session) GetEntity(ctx context.Context, urn types.URN) (map[string]any, error) {
	path := "/entities/" + url.PathEscape(urn.String())
	resp, err := x.do(ctx, http.MethodGet, path, nil, nil)
	if err != nil {
		return nil, err
	}
	if resp.status == http.StatusNotFound {
		return nil, nil
	}
	if !isSuccess(resp.status) {
		return nil, statusError(resp, http.MethodGet, path)
	}

	var entity map[string]any
	if err := json.Unmarshal(resp.body, &entity); err != nil {
		return nil, goerr.Wrap(types.ErrPermanentDelivery, "failed to decode entity", goerr.V("urn", urn), goerr.V("error", err.Error()))
	}
	return entity, nil
}

func (x *Session) DeleteEntity(ctx context.Context, urn types.URN) error {
	path := "/entities/" + url.PathEscape(urn.String())
	resp, err := x.do(ctx, http.MethodDelete, path, nil, nil)
	if err != nil {
		return err
	}
	if !isSuccess(resp.status) {
		return statusError(resp, http.MethodDelete, path)
	}
	return nil
}

func (x *Session) Close() error {
	x.http.CloseIdleConnections()
	return nil
}

var _ interfaces.CatalogSession = &Session{}
