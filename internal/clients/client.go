package clients

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/aaravmahajanofficial/storefront-core/internal/api/middleware"
	"github.com/aaravmahajanofficial/storefront-core/internal/errors"
	"github.com/cenkalti/backoff/v4"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// envelope mirrors the JSON envelope every storefront service answers with.
type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data,omitempty"`
	Error   *struct {
		Code    string   `json:"code"`
		Message string   `json:"message"`
		Details []string `json:"details,omitempty"`
	} `json:"error,omitempty"`
}

type request struct {
	method     string
	path       string
	credential string
	headers    map[string]string
	body       any
	// retry marks the call as safe to repeat after a transport failure or 5xx.
	retry bool
}

// baseClient is the shared HTTP plumbing: tracing transport, JSON envelope,
// bounded retries and status-to-AppError mapping.
type baseClient struct {
	name       string
	baseURL    string
	http       *http.Client
	maxRetries uint64
	newBackOff func() backoff.BackOff
}

func newBaseClient(name, baseURL string, timeout time.Duration, maxRetries uint64) baseClient {
	return baseClient{
		name:    name,
		baseURL: strings.TrimRight(baseURL, "/"),
		http: &http.Client{
			Timeout:   timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		maxRetries: maxRetries,
		newBackOff: func() backoff.BackOff {
			b := backoff.NewExponentialBackOff()
			b.InitialInterval = 100 * time.Millisecond
			b.MaxInterval = time.Second
			return b
		},
	}
}

// do sends req and decodes the envelope's data into out when out is non-nil.
// It returns the final HTTP status alongside any error.
func (c *baseClient) do(ctx context.Context, req request, out any) (int, error) {
	var payload []byte
	if req.body != nil {
		var err error
		if payload, err = json.Marshal(req.body); err != nil {
			return 0, errors.InternalError("Failed to encode request").WithError(err)
		}
	}

	var status int

	operation := func() error {
		var err error
		status, err = c.send(ctx, req, payload, out)
		if err == nil {
			return nil
		}
		if req.retry && errors.HasCode(err, errors.ErrCodeTransientNetwork) && ctx.Err() == nil {
			return err
		}

		return backoff.Permanent(err)
	}

	retries := uint64(0)
	if req.retry {
		retries = c.maxRetries
	}

	b := backoff.WithContext(backoff.WithMaxRetries(c.newBackOff(), retries), ctx)
	notify := func(err error, wait time.Duration) {
		middleware.LoggerFromContext(ctx).Debug("Retrying upstream call",
			slog.String("upstream", c.name),
			slog.String("path", req.path),
			slog.Duration("wait", wait),
			slog.String("error", err.Error()))
	}

	return status, backoff.RetryNotify(operation, b, notify)
}

func (c *baseClient) send(ctx context.Context, req request, payload []byte, out any) (int, error) {
	var body io.Reader
	if payload != nil {
		body = bytes.NewReader(payload)
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.method, c.baseURL+req.path, body)
	if err != nil {
		return 0, errors.InternalError("Failed to build request").WithError(err)
	}

	httpReq.Header.Set("Accept", "application/json")
	if payload != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	if req.credential != "" {
		httpReq.Header.Set("Authorization", "Bearer "+req.credential)
	}
	for k, v := range req.headers {
		httpReq.Header.Set(k, v)
	}

	resp, err := c.http.Do(httpReq)
	if err != nil {
		if ctx.Err() != nil {
			return 0, ctx.Err()
		}
		return 0, errors.TransientNetworkError(c.name + " is unreachable").WithError(err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, errors.TransientNetworkError("Failed to read " + c.name + " response").WithError(err)
	}

	if resp.StatusCode >= 300 {
		return resp.StatusCode, c.statusError(resp.StatusCode, raw)
	}

	if out == nil || len(bytes.TrimSpace(raw)) == 0 {
		return resp.StatusCode, nil
	}

	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return resp.StatusCode, errors.ThirdPartyError("Malformed " + c.name + " response").WithError(err)
	}
	if len(env.Data) == 0 || string(env.Data) == "null" {
		return resp.StatusCode, nil
	}
	if err := json.Unmarshal(env.Data, out); err != nil {
		return resp.StatusCode, errors.ThirdPartyError("Malformed " + c.name + " response").WithError(err)
	}

	return resp.StatusCode, nil
}

func (c *baseClient) statusError(status int, raw []byte) error {
	message := fmt.Sprintf("%s returned status %d", c.name, status)

	var env envelope
	if json.Unmarshal(raw, &env) == nil && env.Error != nil && env.Error.Message != "" {
		message = env.Error.Message
	}

	var appErr *errors.AppError

	switch {
	case status == http.StatusUnauthorized:
		appErr = errors.SessionExpiredError("Session expired, please sign in again")
	case status == http.StatusTooManyRequests || status >= 500:
		appErr = errors.TransientNetworkError(c.name + " is temporarily unavailable")
	case status == http.StatusNotFound:
		appErr = errors.NotFoundError(message)
	case env.Error != nil && env.Error.Code != "":
		appErr = errors.NewAppError(env.Error.Code, message, status)
	default:
		appErr = errors.ThirdPartyError(message)
	}

	if env.Error != nil {
		appErr = appErr.WithDetails(env.Error.Details...)
	}

	return appErr.WithError(fmt.Errorf("%s: status %d", c.name, status))
}
