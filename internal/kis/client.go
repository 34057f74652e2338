// Package kis is a small client for the Korea Investment & Securities Open API.
package kis

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/oauth2"
	"golang.org/x/time/rate"
)

const (
	RealBaseURL = "https://openapi.koreainvestment.com:9443"
	DemoBaseURL = "https://openapivts.koreainvestment.com:29443"
)

type Env string

const (
	EnvReal Env = "real"
	EnvDemo Env = "demo"
)

var (
	ErrNoToken   = errors.New("kis: token response had no access_token")
	ErrNoAccount = errors.New("kis: account number not configured")
)

// APIError is a broker-level rejection (rt_cd != "0") on an otherwise successful HTTP call.
type APIError struct {
	Code    string
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("kis: %s: %s", e.Code, e.Message)
}

// Recorder receives one event per upstream call.
type Recorder interface {
	UpstreamRequest(trID, status string, elapsed time.Duration)
}

type noopRecorder struct{}

func (noopRecorder) UpstreamRequest(string, string, time.Duration) {}

type Client struct {
	http      *http.Client
	baseURL   *url.URL
	appKey    string
	appSecret string
	account   string // CANO, 8 digits
	product   string // ACNT_PRDT_CD
	demo      bool

	tokens  oauth2.TokenSource
	limiter *rate.Limiter
	log     zerolog.Logger
	metrics Recorder
}

type Option func(*Client)

func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) { c.http = h }
}

func WithBaseURL(raw string) Option {
	return func(c *Client) {
		if u, err := url.Parse(raw); err == nil {
			c.baseURL = u
		}
	}
}

// WithEnv selects the real or demo trading server.
func WithEnv(env Env) Option {
	return func(c *Client) {
		c.demo = env != EnvReal
		if c.demo {
			c.baseURL, _ = url.Parse(DemoBaseURL)
		} else {
			c.baseURL, _ = url.Parse(RealBaseURL)
		}
	}
}

func WithAccount(cano, productCode string) Option {
	return func(c *Client) { c.account, c.product = cano, productCode }
}

func WithLimiter(l *rate.Limiter) Option {
	return func(c *Client) { c.limiter = l }
}

func WithLogger(l zerolog.Logger) Option {
	return func(c *Client) { c.log = l }
}

// WithTokenSource overrides the default /oauth2/tokenP source.
func WithTokenSource(ts oauth2.TokenSource) Option {
	return func(c *Client) { c.tokens = ts }
}

func WithMetrics(r Recorder) Option {
	return func(c *Client) {
		if r != nil {
			c.metrics = r
		}
	}
}

func New(appKey, appSecret string, opts ...Option) (*Client, error) {
	if appKey == "" || appSecret == "" {
		return nil, errors.New("appKey and appSecret required")
	}
	u, _ := url.Parse(DemoBaseURL)
	c := &Client{
		http:      &http.Client{Timeout: 10 * time.Second},
		baseURL:   u,
		appKey:    appKey,
		appSecret: appSecret,
		product:   "01",
		demo:      true,
		limiter:   rate.NewLimiter(2, 1),
		log:       zerolog.Nop(),
		metrics:   noopRecorder{},
	}
	for _, o := range opts {
		o(c)
	}
	if c.tokens == nil {
		c.tokens = oauth2.ReuseTokenSource(nil, &tokenSource{c: c})
	}
	return c, nil
}

// trID maps a production transaction id to its demo-server twin. Only trading
// ids (T prefix) differ between the two servers.
func (c *Client) trID(id string) string {
	if c.demo && strings.HasPrefix(id, "T") {
		return "V" + id[1:]
	}
	return id
}

func (c *Client) endpoint(p string, q url.Values) string {
	u := *c.baseURL
	u.Path = path.Join(u.Path, p)
	if q != nil {
		u.RawQuery = q.Encode()
	}
	return u.String()
}

type envelope struct {
	RtCd  string `json:"rt_cd"`
	MsgCd string `json:"msg_cd"`
	Msg1  string `json:"msg1"`
}

func (c *Client) get(ctx context.Context, p, trID string, q url.Values, out any) error {
	return c.do(ctx, http.MethodGet, p, trID, q, nil, out)
}

func (c *Client) post(ctx context.Context, p, trID string, body, out any) error {
	return c.do(ctx, http.MethodPost, p, trID, nil, body, out)
}

func (c *Client) do(ctx context.Context, method, p, trID string, q url.Values, body, out any) error {
	trID = c.trID(trID)
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}
	tok, err := c.tokens.Token()
	if err != nil {
		return fmt.Errorf("kis token: %w", err)
	}

	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return err
		}
		rd = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.endpoint(p, q), rd)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json; charset=utf-8")
	req.Header.Set("authorization", "Bearer "+tok.AccessToken)
	req.Header.Set("appkey", c.appKey)
	req.Header.Set("appsecret", c.appSecret)
	req.Header.Set("tr_id", trID)
	req.Header.Set("custtype", "P")

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		c.metrics.UpstreamRequest(trID, "error", time.Since(start))
		return fmt.Errorf("%s %s: %w", method, p, err)
	}
	defer resp.Body.Close()

	b, err := io.ReadAll(resp.Body)
	elapsed := time.Since(start)
	if err != nil {
		c.metrics.UpstreamRequest(trID, "error", elapsed)
		return err
	}
	if resp.StatusCode != http.StatusOK {
		c.metrics.UpstreamRequest(trID, fmt.Sprint(resp.StatusCode), elapsed)
		return fmt.Errorf("%s %s: %s: %s", method, p, resp.Status, string(b))
	}

	var env envelope
	if err := json.Unmarshal(b, &env); err != nil {
		c.metrics.UpstreamRequest(trID, "error", elapsed)
		return fmt.Errorf("%s %s: decode: %w", method, p, err)
	}
	if env.RtCd != "0" {
		c.metrics.UpstreamRequest(trID, "rejected", elapsed)
		return &APIError{Code: env.MsgCd, Message: env.Msg1}
	}
	c.metrics.UpstreamRequest(trID, "ok", elapsed)
	c.log.Debug().Str("tr_id", trID).Str("path", p).Dur("elapsed", elapsed).Msg("kis request")

	if out == nil {
		return nil
	}
	return json.Unmarshal(b, out)
}
