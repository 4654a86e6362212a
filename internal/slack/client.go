package slack

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"math/rand"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/sony/gobreaker/v2"

	"reviewnotify/internal/types"
)

// RetryPolicy configures retry behavior for directory lookups. Message posts
// are never retried; a duplicate notification is worse than a missing one.
type RetryPolicy struct {
	MaxRetries int
	MinWait    time.Duration
	MaxWait    time.Duration
}

// DefaultRetryPolicy returns the lookup retry defaults.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxRetries: 3,
		MinWait:    500 * time.Millisecond,
		MaxWait:    10 * time.Second,
	}
}

// Client talks to the Slack Web API. It implements types.Transport for
// message delivery and exposes LookupUserByEmail for the recipient resolver.
// All calls share one circuit breaker so a Slack outage trips quickly instead
// of stalling every in-flight dispatch.
type Client struct {
	httpClient  *http.Client
	breaker     *gobreaker.CircuitBreaker[*http.Response]
	token       types.SecretString
	baseURL     string
	retryPolicy RetryPolicy
	userAgent   string
	logger      types.Logger
	sleepFn     func(time.Duration) // for testability; defaults to time.Sleep
}

var _ types.Transport = (*Client)(nil)

// ClientOption is a functional option for configuring a Client.
type ClientOption func(*Client)

// WithSleepFunc overrides the sleep function used between lookup retries.
// This is intended for testing to avoid real delays.
func WithSleepFunc(fn func(time.Duration)) ClientOption {
	return func(c *Client) {
		c.sleepFn = fn
	}
}

// WithRetryPolicy overrides the lookup retry policy.
func WithRetryPolicy(p RetryPolicy) ClientOption {
	return func(c *Client) {
		c.retryPolicy = p
	}
}

// NewClient creates a Slack API client.
func NewClient(httpClient *http.Client, token types.SecretString, baseURL string, logger types.Logger, opts ...ClientOption) *Client {
	cb := gobreaker.NewCircuitBreaker[*http.Response](gobreaker.Settings{
		Name:        "slack-api",
		MaxRequests: 1,
		Interval:    60 * time.Second,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures > 5
		},
		IsSuccessful: func(err error) bool {
			return err == nil
		},
	})

	c := &Client{
		httpClient:  httpClient,
		breaker:     cb,
		token:       token,
		baseURL:     baseURL,
		retryPolicy: DefaultRetryPolicy(),
		userAgent:   "reviewnotify/1.0",
		logger:      logger,
		sleepFn:     time.Sleep,
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// PostMessage delivers one message via chat.postMessage. Single attempt: any
// failure (HTTP error, non-2xx status, or ok=false in the body) is returned
// as a transport error and the message is considered lost. The caller decides
// whether losing it matters.
func (c *Client) PostMessage(ctx context.Context, msg *types.Message) error {
	payload := BuildPayload(msg)
	body, err := json.Marshal(payload)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalUnexpected, "failed to encode slack payload", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat.postMessage", bytes.NewReader(body))
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalUnexpected, "failed to build slack request", err)
	}
	req.Header.Set("Content-Type", "application/json; charset=utf-8")
	c.setCommonHeaders(req)

	resp, err := c.breaker.Execute(func() (*http.Response, error) {
		return c.httpClient.Do(req)
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return types.NewAppError(types.ErrCodeUpstreamUnavailable,
				"circuit breaker is open; slack unavailable", err)
		}
		return types.NewAppError(types.ErrCodeTransportFailed, "chat.postMessage request failed", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return types.NewAppError(types.ErrCodeTransportFailed, "failed to read chat.postMessage response", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return types.NewAppError(types.ErrCodeTransportFailed,
			fmt.Sprintf("chat.postMessage returned status %d", resp.StatusCode), nil)
	}

	// Slack soft failure: HTTP 200 with ok=false in the body.
	var api apiResponse
	if err := json.Unmarshal(respBody, &api); err != nil {
		return types.NewAppError(types.ErrCodeTransportFailed, "unparseable chat.postMessage response", err)
	}
	if !api.OK {
		reason := api.Error
		if reason == "" {
			reason = "unknown error"
		}
		return types.NewAppError(types.ErrCodeTransportFailed,
			fmt.Sprintf("chat.postMessage rejected: %s", reason), nil)
	}

	return nil
}

// LookupUserByEmail resolves an email address to a Slack user ID via
// users.lookupByEmail. A definitive "no such user" answer surfaces as
// types.ErrNoSlackUser; transient failures (429, 5xx, network) are retried
// with backoff and, once exhausted, returned as lookup errors.
func (c *Client) LookupUserByEmail(ctx context.Context, email string) (string, error) {
	endpoint := c.baseURL + "/users.lookupByEmail?email=" + url.QueryEscape(email)

	var lastResp *http.Response
	var lastErr error

	maxAttempts := 1 + c.retryPolicy.MaxRetries
	for attempt := 0; attempt < maxAttempts; attempt++ {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
		if err != nil {
			return "", types.NewAppError(types.ErrCodeInternalUnexpected, "failed to build lookup request", err)
		}
		c.setCommonHeaders(req)

		resp, err := c.breaker.Execute(func() (*http.Response, error) {
			r, doErr := c.httpClient.Do(req)
			if doErr != nil {
				return nil, doErr
			}
			// 5xx and 429 count as failures for the breaker.
			if r.StatusCode >= 500 || r.StatusCode == http.StatusTooManyRequests {
				return r, fmt.Errorf("upstream returned %d", r.StatusCode)
			}
			return r, nil
		})

		if err == nil {
			return c.parseLookupResponse(resp, email)
		}

		lastErr = err
		if resp != nil {
			if attempt < maxAttempts-1 {
				resp.Body.Close()
			} else {
				lastResp = resp
			}
		}

		// An open breaker will not recover within this invocation.
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			break
		}

		if attempt < maxAttempts-1 {
			c.sleepFn(c.computeBackoff(attempt, resp))
		}
	}

	if lastResp != nil {
		lastResp.Body.Close()
	}

	return "", c.mapLookupError(lastResp, lastErr)
}

// parseLookupResponse interprets a non-retryable lookup response.
func (c *Client) parseLookupResponse(resp *http.Response, email string) (string, error) {
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", types.NewAppError(types.ErrCodeLookupFailed, "failed to read lookup response", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", types.NewAppError(types.ErrCodeLookupFailed,
			fmt.Sprintf("users.lookupByEmail returned status %d", resp.StatusCode), nil)
	}

	var lookup lookupResponse
	if err := json.Unmarshal(body, &lookup); err != nil {
		return "", types.NewAppError(types.ErrCodeLookupFailed, "unparseable lookup response", err)
	}

	if !lookup.OK {
		// users_not_found is a definitive answer, not a failure.
		if lookup.Error == "users_not_found" {
			return "", types.ErrNoSlackUser
		}
		return "", types.NewAppError(types.ErrCodeLookupFailed,
			fmt.Sprintf("users.lookupByEmail rejected: %s", lookup.Error), nil)
	}

	if lookup.User == nil || lookup.User.ID == "" {
		c.logger.Warn("lookup succeeded but returned no user id", "email_domain", emailDomain(email))
		return "", types.ErrNoSlackUser
	}

	return lookup.User.ID, nil
}

func (c *Client) setCommonHeaders(req *http.Request) {
	req.Header.Set("Authorization", "Bearer "+c.token.Unmask())
	req.Header.Set("User-Agent", c.userAgent)
	if traceID := types.GetRequestID(req.Context()); traceID != "" {
		req.Header.Set("X-B3-TraceId", traceID)
	}
}

// computeBackoff determines the wait before the next lookup retry. It
// respects the Retry-After header if present, otherwise uses exponential
// backoff with jitter clamped to [MinWait, MaxWait].
func (c *Client) computeBackoff(attempt int, resp *http.Response) time.Duration {
	if resp != nil {
		if retryAfter := resp.Header.Get("Retry-After"); retryAfter != "" {
			if seconds, err := strconv.Atoi(retryAfter); err == nil && seconds > 0 {
				wait := time.Duration(seconds) * time.Second
				if wait > c.retryPolicy.MaxWait {
					wait = c.retryPolicy.MaxWait
				}
				return wait
			}
			if t, err := http.ParseTime(retryAfter); err == nil {
				wait := time.Until(t)
				if wait <= 0 {
					return c.retryPolicy.MinWait
				}
				if wait > c.retryPolicy.MaxWait {
					wait = c.retryPolicy.MaxWait
				}
				return wait
			}
		}
	}

	base := float64(c.retryPolicy.MinWait) * math.Pow(2, float64(attempt))
	maxWait := float64(c.retryPolicy.MaxWait)
	if base > maxWait {
		base = maxWait
	}

	minWait := float64(c.retryPolicy.MinWait)
	if base <= minWait {
		return c.retryPolicy.MinWait
	}
	jittered := minWait + rand.Float64()*(base-minWait)
	return time.Duration(jittered)
}

// mapLookupError translates exhausted-retry failures into AppErrors.
func (c *Client) mapLookupError(resp *http.Response, err error) *types.AppError {
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return types.NewAppError(types.ErrCodeUpstreamUnavailable,
			"circuit breaker is open; slack unavailable", err)
	}

	if resp != nil {
		switch {
		case resp.StatusCode == http.StatusTooManyRequests:
			return types.NewAppError(types.ErrCodeUpstreamRateLimited,
				"slack rate limit exceeded", err)
		case resp.StatusCode >= 500:
			return types.NewAppError(types.ErrCodeUpstreamUnavailable,
				fmt.Sprintf("slack returned %d after retries", resp.StatusCode), err)
		}
	}

	return types.NewAppError(types.ErrCodeLookupFailed, "users.lookupByEmail request failed", err)
}

// emailDomain extracts the domain part of an email for logging without
// exposing the address itself.
func emailDomain(email string) string {
	for i := len(email) - 1; i >= 0; i-- {
		if email[i] == '@' {
			return email[i+1:]
		}
	}
	return ""
}
