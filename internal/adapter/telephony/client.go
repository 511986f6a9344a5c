// Package telephony places outbound calls through a Twilio Studio flow.
package telephony

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/rand/v2"
	"net/http"
	"net/http/httptrace"
	"net/url"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/adam-a-i/ruya/internal/logger"
)

// Dialer rings a contact.
type Dialer interface {
	PlaceCall(ctx context.Context, to, from string) (*Execution, error)
}

type Config struct {
	AccountSID  string
	AuthToken   string
	FlowSID     string
	DefaultFrom string
	BaseURL     string
	Timeout     time.Duration
	MaxRetries  int
	// BaseBackoff is the first retry delay; it doubles on every attempt.
	BaseBackoff time.Duration
}

// Execution is a Studio flow execution.
type Execution struct {
	SID         string `json:"sid"`
	AccountSID  string `json:"account_sid,omitempty"`
	FlowSID     string `json:"flow_sid,omitempty"`
	Status      string `json:"status,omitempty"`
	ContactChan string `json:"contact_channel_address,omitempty"`
	DateCreated string `json:"date_created,omitempty"`
}

func New(log *logger.Logger, cfg Config) (Dialer, error) {
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}

	cfg.AccountSID = strings.TrimSpace(cfg.AccountSID)
	cfg.AuthToken = strings.TrimSpace(cfg.AuthToken)
	cfg.FlowSID = strings.TrimSpace(cfg.FlowSID)
	cfg.DefaultFrom = strings.TrimSpace(cfg.DefaultFrom)
	if cfg.AccountSID == "" || cfg.AuthToken == "" {
		return nil, fmt.Errorf("missing TWILIO_ACCOUNT_SID or TWILIO_AUTH_TOKEN")
	}
	if cfg.FlowSID == "" {
		return nil, fmt.Errorf("missing TWILIO_STUDIO_FLOW_SID")
	}

	if strings.TrimSpace(cfg.BaseURL) == "" {
		cfg.BaseURL = "https://studio.twilio.com/v2"
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	if cfg.BaseBackoff <= 0 {
		cfg.BaseBackoff = time.Second
	}

	return &client{
		log:        log.With("client", "TwilioStudio"),
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
	}, nil
}

type client struct {
	log        *logger.Logger
	cfg        Config
	httpClient *http.Client
}

// PlaceCall starts the configured Studio flow towards to.
func (c *client) PlaceCall(ctx context.Context, to, from string) (*Execution, error) {
	to = strings.TrimSpace(to)
	from = strings.TrimSpace(from)
	if to == "" {
		return nil, fmt.Errorf("twilio: To required")
	}
	if from == "" {
		from = c.cfg.DefaultFrom
	}
	if from == "" {
		return nil, fmt.Errorf("twilio: From required")
	}

	form := url.Values{}
	form.Set("To", to)
	form.Set("From", from)

	endpoint := fmt.Sprintf("%s/Flows/%s/Executions", c.cfg.BaseURL, url.PathEscape(c.cfg.FlowSID))
	return c.doForm(ctx, endpoint, form)
}

type apiError struct {
	Code     int    `json:"code"`
	Message  string `json:"message"`
	MoreInfo string `json:"more_info"`
	Status   int    `json:"status"`
}

type HTTPError struct {
	StatusCode int
	Body       string
	APIError   *apiError
}

func (e *HTTPError) Error() string {
	if e.APIError != nil && strings.TrimSpace(e.APIError.Message) != "" {
		if e.APIError.Code != 0 {
			return fmt.Sprintf("twilio http %d: %s (code=%d)", e.StatusCode, e.APIError.Message, e.APIError.Code)
		}
		return fmt.Sprintf("twilio http %d: %s", e.StatusCode, e.APIError.Message)
	}
	msg := strings.TrimSpace(e.Body)
	if msg == "" {
		msg = "<empty body>"
	}
	if len(msg) > 4000 {
		msg = msg[:4000] + "..."
	}
	return fmt.Sprintf("twilio http %d: %s", e.StatusCode, msg)
}

// transportError is a failure with no HTTP response. Sent reports whether the
// request had already been written to the wire.
type transportError struct {
	err  error
	sent bool
}

func (e *transportError) Error() string { return e.err.Error() }
func (e *transportError) Unwrap() error { return e.err }

// isRetryable only allows retries that cannot start a second execution:
// 429s and failures before the request left the client.
func isRetryable(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var httpErr *HTTPError
	if errors.As(err, &httpErr) {
		return httpErr.StatusCode == http.StatusTooManyRequests
	}
	var tErr *transportError
	if errors.As(err, &tErr) {
		return !tErr.sent
	}
	return false
}

func retryAfter(resp *http.Response, fallback, max time.Duration) time.Duration {
	if resp != nil {
		if secs, err := strconv.Atoi(strings.TrimSpace(resp.Header.Get("Retry-After"))); err == nil && secs >= 0 {
			d := time.Duration(secs) * time.Second
			if d > max {
				return max
			}
			return d
		}
	}
	return fallback
}

func (c *client) doForm(ctx context.Context, urlStr string, form url.Values) (*Execution, error) {
	backoff := c.cfg.BaseBackoff

	for attempt := 0; attempt <= c.cfg.MaxRetries; attempt++ {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}

		out, resp, err := c.doFormOnce(ctx, urlStr, form)
		if err == nil {
			return out, nil
		}

		if !isRetryable(err) || attempt == c.cfg.MaxRetries {
			return nil, err
		}

		sleepFor := retryAfter(resp, backoff, 10*time.Second)
		sleepFor += time.Duration(rand.Int64N(int64(sleepFor)/5 + 1))

		c.log.Warn("Twilio request retrying",
			"url", urlStr,
			"attempt", attempt+1,
			"max_retries", c.cfg.MaxRetries,
			"sleep", sleepFor.String(),
			"error", err.Error(),
		)

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(sleepFor):
		}
		backoff *= 2
	}

	return nil, fmt.Errorf("unreachable retry loop")
}

func (c *client) doFormOnce(ctx context.Context, urlStr string, form url.Values) (*Execution, *http.Response, error) {
	var sent atomic.Bool
	trace := &httptrace.ClientTrace{
		WroteHeaders: func() { sent.Store(true) },
	}
	req, err := http.NewRequestWithContext(httptrace.WithClientTrace(ctx, trace), http.MethodPost, urlStr, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, nil, err
	}

	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")
	req.SetBasicAuth(c.cfg.AccountSID, c.cfg.AuthToken)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, resp, &transportError{err: err, sent: sent.Load()}
	}

	raw, readErr := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	if readErr != nil {
		return nil, resp, readErr
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var ae apiError
		if json.Unmarshal(raw, &ae) == nil && strings.TrimSpace(ae.Message) != "" {
			return nil, resp, &HTTPError{StatusCode: resp.StatusCode, Body: string(raw), APIError: &ae}
		}
		return nil, resp, &HTTPError{StatusCode: resp.StatusCode, Body: string(raw)}
	}

	var out Execution
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, resp, fmt.Errorf("twilio decode error: %w; raw=%s", err, string(raw))
	}
	return &out, resp, nil
}
