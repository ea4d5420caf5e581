// Package client provides HTTP clients for the external report-source,
// transcript and chat services.
//
// Every call is a single attempt with no caching. Failures of any kind are
// returned as *errors.UpstreamError carrying a message fit for display.
package client

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

	smerrors "github.com/otherjamesbrown/summit/pkg/errors"
	"github.com/otherjamesbrown/summit/pkg/logging"
	"github.com/otherjamesbrown/summit/pkg/observability"
)

// Service names used in errors, logs and metrics.
const (
	ServiceReportSource = "report-source"
	ServiceTranscript   = "transcript"
	ServiceChat         = "chat"
)

// maxErrorBody bounds how much of a failed response is read looking for a message.
const maxErrorBody = 64 << 10

// Options configures the service clients.
type Options struct {
	// Timeout bounds each request. Zero leaves the transport default in place.
	Timeout time.Duration

	// HTTPClient overrides the client used for requests.
	HTTPClient *http.Client

	// Logger receives debug logs for each call. Defaults to a nop logger.
	Logger logging.Logger

	// Metrics records request counts and latency. May be nil.
	Metrics *observability.Metrics

	// Tracer wraps each call in a client span. Defaults to the global provider.
	Tracer *observability.Tracer
}

// DefaultOptions returns options using the transport defaults.
func DefaultOptions() *Options {
	return &Options{}
}

type baseClient struct {
	service string
	baseURL string
	http    *http.Client
	logger  logging.Logger
	metrics *observability.Metrics
	tracer  *observability.Tracer
}

func newBaseClient(service, baseURL string, opts *Options) baseClient {
	if opts == nil {
		opts = DefaultOptions()
	}

	hc := opts.HTTPClient
	if hc == nil {
		hc = &http.Client{Timeout: opts.Timeout}
	}

	logger := opts.Logger
	if logger == nil {
		logger = logging.NewNopLogger()
	}

	tracer := opts.Tracer
	if tracer == nil {
		tracer = observability.NewTracer()
	}

	return baseClient{
		service: service,
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    hc,
		logger:  logger.With(logging.F("component", "client"), logging.F("service", service)),
		metrics: opts.Metrics,
		tracer:  tracer,
	}
}

// endpoint joins path segments onto the base URL, escaping each one.
func (c *baseClient) endpoint(segments ...string) string {
	var b strings.Builder
	b.WriteString(c.baseURL)
	for _, s := range segments {
		b.WriteByte('/')
		b.WriteString(url.PathEscape(s))
	}
	return b.String()
}

func (c *baseClient) get(ctx context.Context, operation, endpoint string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return smerrors.Classify(fmt.Errorf("building request: %w", err), c.service, operation)
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(ctx, operation, req, out)
}

func (c *baseClient) postJSON(ctx context.Context, operation, endpoint string, body, out interface{}) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("encoding %s request: %w", operation, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return smerrors.Classify(fmt.Errorf("building request: %w", err), c.service, operation)
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(ctx, operation, req, out)
}

// do sends req and decodes a 2xx JSON body into out. out may be nil, or a
// *[]byte to receive the body undecoded.
func (c *baseClient) do(ctx context.Context, operation string, req *http.Request, out interface{}) error {
	ctx, span := c.tracer.StartUpstreamSpan(ctx, c.service, operation)
	defer span.End()
	helper := observability.NewSpanHelper(span)

	start := time.Now()
	log := c.logger.WithContext(ctx).With(logging.F("operation", operation))

	err := c.roundTrip(req.WithContext(ctx), operation, helper, out)
	elapsed := time.Since(start)

	if err != nil {
		ue := smerrors.Classify(err, c.service, operation)
		helper.SetError(ue, string(ue.Code))
		c.metrics.RecordUpstream(c.service, operation, string(ue.Code), elapsed.Seconds())
		log.Debug("Upstream call failed",
			logging.F("url", req.URL.String()),
			logging.F("code", string(ue.Code)),
			logging.F("duration", elapsed),
			logging.Err(err))
		return ue
	}

	helper.SetSuccess()
	c.metrics.RecordUpstream(c.service, operation, "ok", elapsed.Seconds())
	log.Debug("Upstream call succeeded", logging.F("url", req.URL.String()), logging.F("duration", elapsed))
	return nil
}

func (c *baseClient) roundTrip(req *http.Request, operation string, helper *observability.SpanHelper, out interface{}) error {
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	helper.SetHTTPStatus(resp.StatusCode)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return smerrors.NewStatusError(c.service, operation, resp.StatusCode, bodyMessage(body))
	}

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if raw, ok := out.(*[]byte); ok {
		*raw = body
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return smerrors.NewDecodeError(c.service, operation, err)
	}
	return nil
}

// bodyMessage pulls a "message" string out of an error response body.
func bodyMessage(body []byte) string {
	var payload struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return ""
	}
	return payload.Message
}
