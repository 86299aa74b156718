// Package restdispatch implements store.Dispatch over HTTP and JSON,
// grounded in the same request-per-RPC REST convention a Google Cloud
// Datastore-style client uses: one POST per method against
// "{baseURL}/projects/{app}:{method}".
package restdispatch

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/lodestar-dev/lodestore/store"
)

const (
	defaultTimeout = 30 * time.Second
	maxBodySize    = 10 << 20
	maxAttempts    = 5
)

var tracer = otel.Tracer("github.com/lodestar-dev/lodestore/transport/restdispatch")

// Dispatch is a store.Dispatch implementation speaking JSON over HTTP.
type Dispatch struct {
	client  *http.Client
	baseURL string
	app     string
	logger  *zap.Logger
	limiter *rate.Limiter
}

// Option configures a Dispatch at construction time.
type Option func(*Dispatch)

// WithLogger attaches a structured logger. The default is a no-op logger.
func WithLogger(l *zap.Logger) Option {
	return func(d *Dispatch) { d.logger = l }
}

// WithHTTPClient overrides the HTTP client used for requests.
func WithHTTPClient(c *http.Client) Option {
	return func(d *Dispatch) { d.client = c }
}

// WithRequestsPerSecond bounds outbound request rate; 0 (the default)
// leaves requests unbounded.
func WithRequestsPerSecond(rps float64) Option {
	return func(d *Dispatch) {
		if rps > 0 {
			d.limiter = rate.NewLimiter(rate.Limit(rps), 1)
		}
	}
}

// New creates a Dispatch targeting baseURL for application app.
func New(baseURL, app string, opts ...Option) *Dispatch {
	d := &Dispatch{
		client:  &http.Client{Timeout: defaultTimeout},
		baseURL: baseURL,
		app:     app,
		logger:  zap.NewNop(),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// call issues one RPC: POST {baseURL}/projects/{app}:{method} with body
// marshaled as JSON, decoding the response into out. It retries transient
// failures (network errors, 5xx) with exponential backoff, and wraps the
// whole attempt sequence in an OpenTelemetry span.
func (d *Dispatch) call(ctx context.Context, method string, body, out any) error {
	requestID := uuid.NewString()
	ctx, span := tracer.Start(ctx, "restdispatch."+method,
		trace.WithAttributes(attribute.String("request.id", requestID), attribute.String("store.app", d.app)))
	defer span.End()

	logger := d.logger.With(zap.String("method", method), zap.String("request_id", requestID))

	payload, err := json.Marshal(body)
	if err != nil {
		span.RecordError(err)
		return errors.Wrapf(err, "marshal %s request", method)
	}

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = 50 * time.Millisecond
	bo.MaxInterval = 2 * time.Second
	boWithLimit := backoff.WithMaxRetries(bo, uint64(maxAttempts-1))

	var lastErr error
	attempt := 0
	op := func() error {
		attempt++
		if d.limiter != nil {
			if err := d.limiter.Wait(ctx); err != nil {
				return backoff.Permanent(err)
			}
		}
		status, respBody, err := d.doOnce(ctx, method, payload)
		if err != nil {
			logger.Debug("request attempt failed", zap.Int("attempt", attempt), zap.Error(err))
			lastErr = err
			return err
		}
		if status >= 500 {
			lastErr = fmt.Errorf("server error: status %d", status)
			return lastErr
		}
		if status >= 400 {
			return backoff.Permanent(classifyStatus(status, respBody))
		}
		if out != nil {
			if err := json.Unmarshal(respBody, out); err != nil {
				return backoff.Permanent(errors.Wrapf(err, "decode %s response", method))
			}
		}
		return nil
	}

	if err := backoff.Retry(op, boWithLimit); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		if wireErr, ok := err.(*store.WireError); ok {
			return wireErr
		}
		return &store.WireError{Code: store.WireInternalError, Message: err.Error()}
	}
	return nil
}

func (d *Dispatch) doOnce(ctx context.Context, method string, payload []byte) (int, []byte, error) {
	url := fmt.Sprintf("%s/projects/%s:%s", d.baseURL, d.app, method)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return 0, nil, backoff.Permanent(err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := d.client.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return 0, nil, err
	}
	return resp.StatusCode, body, nil
}

func classifyStatus(status int, body []byte) error {
	var envelope struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	}
	_ = json.Unmarshal(body, &envelope)
	code := store.WireBadRequest
	switch {
	case status == http.StatusConflict:
		code = store.WireConcurrentTransaction
	case status == http.StatusRequestTimeout || status == http.StatusGatewayTimeout:
		code = store.WireTimeout
	case envelope.Code == "NEED_INDEX":
		code = store.WireNeedIndex
	}
	msg := envelope.Message
	if msg == "" {
		msg = fmt.Sprintf("status %d", status)
	}
	return &store.WireError{Code: code, Message: msg}
}

// Put implements store.Dispatch.
func (d *Dispatch) Put(ctx context.Context, req store.PutRequest) (store.PutResponse, error) {
	var out store.PutResponse
	err := d.call(ctx, "commit", req, &out)
	return out, err
}

// Get implements store.Dispatch.
func (d *Dispatch) Get(ctx context.Context, req store.GetRequest) (store.GetResponse, error) {
	var out store.GetResponse
	err := d.call(ctx, "lookup", req, &out)
	return out, err
}

// Delete implements store.Dispatch.
func (d *Dispatch) Delete(ctx context.Context, req store.DeleteRequest) error {
	return d.call(ctx, "commit", req, nil)
}

// RunQuery implements store.Dispatch.
func (d *Dispatch) RunQuery(ctx context.Context, req store.RunQueryRequest) (store.RunQueryResponse, error) {
	var out store.RunQueryResponse
	err := d.call(ctx, "runQuery", req, &out)
	return out, err
}

// Next implements store.Dispatch.
func (d *Dispatch) Next(ctx context.Context, req store.NextRequest) (store.NextResponse, error) {
	var out store.NextResponse
	err := d.call(ctx, "next", req, &out)
	return out, err
}

// Count implements store.Dispatch.
func (d *Dispatch) Count(ctx context.Context, req store.CountRequest) (store.CountResponse, error) {
	var out store.CountResponse
	err := d.call(ctx, "runAggregationQuery", req, &out)
	return out, err
}

// BeginTransaction implements store.Dispatch.
func (d *Dispatch) BeginTransaction(ctx context.Context) (store.BeginTransactionResponse, error) {
	var out store.BeginTransactionResponse
	err := d.call(ctx, "beginTransaction", struct{}{}, &out)
	return out, err
}

// Commit implements store.Dispatch.
func (d *Dispatch) Commit(ctx context.Context, transactionID string) error {
	return d.call(ctx, "commit", struct {
		TransactionID string `json:"transactionId"`
	}{transactionID}, nil)
}

// Rollback implements store.Dispatch.
func (d *Dispatch) Rollback(ctx context.Context, transactionID string) error {
	return d.call(ctx, "rollback", struct {
		TransactionID string `json:"transactionId"`
	}{transactionID}, nil)
}

var _ store.Dispatch = (*Dispatch)(nil)
