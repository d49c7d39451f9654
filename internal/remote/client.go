// Package remote implements the post store contract over the Cadence HTTP
// API, so a coordinator can run against a store in another process.
package remote

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

	"github.com/failsafe-go/failsafe-go"
	"github.com/failsafe-go/failsafe-go/retrypolicy"

	"github.com/hpungsan/cadence/internal/calendar"
	"github.com/hpungsan/cadence/internal/errors"
	"github.com/hpungsan/cadence/internal/post"
	"github.com/hpungsan/cadence/internal/recommend"
	"github.com/hpungsan/cadence/internal/store"
	"github.com/hpungsan/cadence/internal/web"
)

const (
	defaultTimeout   = 10 * time.Second
	defaultRetries   = 2
	defaultBaseDelay = 100 * time.Millisecond
	defaultMaxDelay  = 2 * time.Second

	// maxResponseBytes caps how much of a response body is read.
	maxResponseBytes = 8 << 20
)

// reply is a fully read HTTP response.
type reply struct {
	status int
	body   []byte
}

// Client is a store.PostStore backed by the HTTP API. Reads are retried
// with backoff on transport failures; writes are sent once.
type Client struct {
	baseURL *url.URL
	http    *http.Client
	token   string
	timeout time.Duration

	retries   int
	baseDelay time.Duration
	maxDelay  time.Duration
	reads     failsafe.Executor[*reply]
}

var _ store.PostStore = (*Client)(nil)

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the default http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.http = hc
		}
	}
}

// WithToken sets the bearer token used when a call carries no credentials.
func WithToken(token string) Option {
	return func(c *Client) { c.token = token }
}

// WithTimeout bounds each attempt. Zero or less keeps the default.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// WithRetries sets how many times a failed read is retried. Negative
// disables retries.
func WithRetries(n int) Option {
	return func(c *Client) { c.retries = max(n, 0) }
}

// WithBackoff sets the retry backoff bounds.
func WithBackoff(base, maxDelay time.Duration) Option {
	return func(c *Client) {
		if base > 0 {
			c.baseDelay = base
		}
		if maxDelay > 0 {
			c.maxDelay = maxDelay
		}
	}
}

// New returns a client for the API rooted at baseURL.
func New(baseURL string, opts ...Option) (*Client, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("invalid store url %q: %w", baseURL, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" || u.Host == "" {
		return nil, fmt.Errorf("invalid store url %q: want http(s)://host", baseURL)
	}

	c := &Client{
		baseURL:   u,
		http:      &http.Client{},
		timeout:   defaultTimeout,
		retries:   defaultRetries,
		baseDelay: defaultBaseDelay,
		maxDelay:  defaultMaxDelay,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.maxDelay = max(c.maxDelay, c.baseDelay)

	retry := retrypolicy.NewBuilder[*reply]().
		WithBackoff(c.baseDelay, c.maxDelay).
		WithMaxRetries(c.retries).
		WithJitterFactor(0.1).
		HandleIf(func(_ *reply, err error) bool {
			return errors.Is(err, errors.ErrTransport)
		}).
		Build()
	c.reads = failsafe.With(retry)
	return c, nil
}

// List implements store.PostStore.
func (c *Client) List(ctx context.Context, creds store.Credentials, filter calendar.Filter) ([]post.Post, error) {
	var out web.PostList
	if err := c.read(ctx, creds, "list", "/api/posts", calendar.EncodeQuery(filter), &out); err != nil {
		return nil, err
	}
	if out.Posts == nil {
		out.Posts = []post.Post{}
	}
	return out.Posts, nil
}

// Get implements store.PostStore.
func (c *Client) Get(ctx context.Context, creds store.Credentials, id string) (*post.Post, error) {
	var out post.Post
	if err := c.read(ctx, creds, "get", "/api/posts/"+url.PathEscape(id), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Create implements store.PostStore.
func (c *Client) Create(ctx context.Context, creds store.Credentials, req post.CreateRequest) (*post.Post, error) {
	var out post.Post
	if err := c.write(ctx, creds, "create", http.MethodPost, "/api/posts", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Update implements store.PostStore.
func (c *Client) Update(ctx context.Context, creds store.Credentials, id string, req post.UpdateRequest) (*post.Post, error) {
	var out post.Post
	if err := c.write(ctx, creds, "update", http.MethodPatch, "/api/posts/"+url.PathEscape(id), req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Reschedule implements store.PostStore.
func (c *Client) Reschedule(ctx context.Context, creds store.Credentials, id string, at time.Time) (*post.Post, error) {
	var out post.Post
	body := web.RescheduleBody{ScheduledDate: at.UTC()}
	if err := c.write(ctx, creds, "reschedule", http.MethodPost, "/api/posts/"+url.PathEscape(id)+"/reschedule", body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Delete implements store.PostStore.
func (c *Client) Delete(ctx context.Context, creds store.Credentials, id string) error {
	return c.write(ctx, creds, "delete", http.MethodDelete, "/api/posts/"+url.PathEscape(id), nil, nil)
}

// Recommendations implements store.PostStore.
func (c *Client) Recommendations(ctx context.Context, creds store.Credentials, platform post.Platform) ([]recommend.Recommendation, error) {
	var out web.RecommendationList
	if err := c.read(ctx, creds, "recommendations", "/api/recommendations", platformQuery(platform), &out); err != nil {
		return nil, err
	}
	return out.Recommendations, nil
}

// ImportRecommendations implements store.PostStore.
func (c *Client) ImportRecommendations(ctx context.Context, creds store.Credentials, recs []recommend.Recommendation) (int, error) {
	var out web.ImportResult
	body := web.RecommendationList{Recommendations: recs}
	if err := c.write(ctx, creds, "import_recommendations", http.MethodPost, "/api/recommendations", body, &out); err != nil {
		return 0, err
	}
	return out.Imported, nil
}

// TimeSlots implements store.PostStore.
func (c *Client) TimeSlots(ctx context.Context, creds store.Credentials, platform post.Platform) ([]recommend.TimeSlot, error) {
	var out web.SlotList
	if err := c.read(ctx, creds, "time_slots", "/api/slots", platformQuery(platform), &out); err != nil {
		return nil, err
	}
	return out.Slots, nil
}

// SaveTimeSlot implements store.PostStore.
func (c *Client) SaveTimeSlot(ctx context.Context, creds store.Credentials, slot recommend.TimeSlot) (*recommend.TimeSlot, error) {
	var out recommend.TimeSlot
	if err := c.write(ctx, creds, "save_time_slot", http.MethodPut, "/api/slots/"+url.PathEscape(slot.ID), slot, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// SetTimeSlotActive implements store.PostStore.
func (c *Client) SetTimeSlotActive(ctx context.Context, creds store.Credentials, id string, active bool) (*recommend.TimeSlot, error) {
	var out recommend.TimeSlot
	body := web.ActiveBody{Active: active}
	if err := c.write(ctx, creds, "set_time_slot_active", http.MethodPost, "/api/slots/"+url.PathEscape(id)+"/active", body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func platformQuery(platform post.Platform) url.Values {
	if platform == "" {
		return nil
	}
	return url.Values{"platform": {string(platform)}}
}

// read issues an idempotent GET through the retry executor.
func (c *Client) read(ctx context.Context, creds store.Credentials, op, path string, query url.Values, out any) error {
	rep, err := c.reads.WithContext(ctx).Get(func() (*reply, error) {
		return c.attempt(ctx, creds, op, http.MethodGet, path, query, nil)
	})
	if err != nil {
		return asTransport(op, err)
	}
	return decodeReply(op, rep, out)
}

// write sends a mutation exactly once.
func (c *Client) write(ctx context.Context, creds store.Credentials, op, method, path string, in, out any) error {
	var body []byte
	if in != nil {
		var err error
		if body, err = json.Marshal(in); err != nil {
			return errors.NewInternal(err)
		}
	}
	rep, err := c.attempt(ctx, creds, op, method, path, nil, body)
	if err != nil {
		return asTransport(op, err)
	}
	return decodeReply(op, rep, out)
}

// attempt performs one request under the per-attempt timeout. Network
// failures and transient statuses come back as TRANSPORT errors; other
// statuses are returned as replies.
func (c *Client) attempt(ctx context.Context, creds store.Credentials, op, method, path string, query url.Values, body []byte) (*reply, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	u := *c.baseURL
	u.Path += path
	u.RawQuery = query.Encode()

	var rd io.Reader
	if body != nil {
		rd = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, u.String(), rd)
	if err != nil {
		return nil, errors.NewInternal(err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	token := creds.Token
	if token == "" {
		token = c.token
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, errors.NewTransport(op, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, errors.NewTransport(op, err)
	}
	rep := &reply{status: resp.StatusCode, body: data}
	if isTransientStatus(resp.StatusCode) {
		return nil, errors.NewTransport(op, replyError(rep))
	}
	return rep, nil
}

func isTransientStatus(code int) bool {
	switch code {
	case http.StatusTooManyRequests,
		http.StatusBadGateway,
		http.StatusServiceUnavailable,
		http.StatusGatewayTimeout:
		return true
	}
	return false
}

// decodeReply maps an error envelope back to a CadenceError, or decodes a
// success body into out.
func decodeReply(op string, rep *reply, out any) error {
	if rep.status < 200 || rep.status > 299 {
		return replyError(rep)
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(rep.body, out); err != nil {
		return errors.NewTransport(op, fmt.Errorf("decode response: %w", err))
	}
	return nil
}

func replyError(rep *reply) *errors.CadenceError {
	var env web.ErrorBody
	if err := json.Unmarshal(rep.body, &env); err == nil && env.Error.Code != "" {
		return errors.FromWire(env.Error.Code, rep.status, env.Error.Message, env.Error.Details)
	}
	msg := strings.TrimSpace(string(rep.body))
	if msg == "" {
		msg = http.StatusText(rep.status)
	}
	switch rep.status {
	case http.StatusUnauthorized, http.StatusForbidden:
		return errors.NewUnauthorized()
	case http.StatusNotFound:
		return errors.FromWire(errors.ErrNotFound, rep.status, msg, nil)
	}
	return errors.FromWire(errors.ErrInternal, rep.status, fmt.Sprintf("status %d: %s", rep.status, msg), nil)
}

// asTransport keeps CadenceErrors as they are and wraps anything else the
// executor returns, such as a canceled context, as TRANSPORT.
func asTransport(op string, err error) error {
	if ce, ok := errors.As(err); ok {
		return ce
	}
	return errors.NewTransport(op, err)
}
