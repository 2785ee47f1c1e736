// Package gsis is the SOAP client for the GSIS RgWsPublic registry service,
// which returns the basic registration record of a Greek tax number.
//
// Lookups are authenticated with a WS-Security UsernameToken issued by GSIS
// to the calling entity. The version call is public.
package gsis

import (
	"bytes"
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"taxid/internal/registry"
	"taxid/pkg/requestcontext"
)

// ProviderID identifies this provider in errors and logs.
const ProviderID = "gsis"

// DefaultEndpoint is the public RgWsPublic SOAP port.
const DefaultEndpoint = "https://www1.gsis.gr/webtax2/wsgsis/RgWsPublic/RgWsPublicPort"

const maxResponseBytes = 4 << 20

// ErrMissingCredentials is returned by New when either credential is empty.
var ErrMissingCredentials = errors.New("gsis: username and password are required")

// Config configures a Client.
type Config struct {
	Endpoint string
	Username string
	Password string

	// HTTPClient defaults to a client that honours the proxy environment.
	HTTPClient *http.Client
}

// Client implements registry.Client over SOAP.
type Client struct {
	endpoint   string
	username   string
	password   string
	httpClient *http.Client
	tracer     trace.Tracer
}

var _ registry.Client = (*Client)(nil)

// New returns a client authenticated with the given GSIS credentials.
func New(cfg Config) (*Client, error) {
	if cfg.Username == "" || cfg.Password == "" {
		return nil, ErrMissingCredentials
	}
	endpoint := cfg.Endpoint
	if endpoint == "" {
		endpoint = DefaultEndpoint
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		transport := http.DefaultTransport.(*http.Transport).Clone()
		transport.Proxy = http.ProxyFromEnvironment
		httpClient = &http.Client{Transport: transport, Timeout: 30 * time.Second}
	}
	return &Client{
		endpoint:   endpoint,
		username:   cfg.Username,
		password:   cfg.Password,
		httpClient: httpClient,
		tracer:     otel.Tracer("taxid/internal/registry/gsis"),
	}, nil
}

// Lookup calls rgWsPublicAfmMethod.
func (c *Client) Lookup(ctx context.Context, req registry.LookupRequest) (_ *registry.Registration, err error) {
	ctx, span := c.tracer.Start(ctx, "gsis.rgWsPublicAfmMethod",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(attribute.String("rpc.system", "soap"), attribute.String("rpc.method", "rgWsPublicAfmMethod")),
	)
	defer func() { endSpan(span, err) }()

	var resp responseEnvelope
	if err := c.call(ctx, newEnvelope(newAFMMethod(req), c.username, c.password), &resp); err != nil {
		return nil, err
	}
	out := resp.Body.AFMResponse
	if out == nil {
		return nil, registry.NewProviderError(registry.ErrorContractMismatch, ProviderID, "response has no rgWsPublicAfmMethodResponse", nil)
	}
	span.SetAttributes(attribute.String("gsis.call_seq_id", strings.TrimSpace(out.CallSeqID)))

	if code := strings.TrimSpace(out.Error.Code); code != "" {
		return nil, &registry.ServiceError{Code: code, Description: strings.TrimSpace(out.Error.Descr)}
	}

	record, err := out.toRegistration()
	if err != nil {
		return nil, registry.NewProviderError(registry.ErrorBadData, ProviderID, "response carries an invalid afm", err)
	}
	return record, nil
}

// Version calls rgWsPublicVersionInfo.
func (c *Client) Version(ctx context.Context) (_ string, err error) {
	ctx, span := c.tracer.Start(ctx, "gsis.rgWsPublicVersionInfo",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(attribute.String("rpc.system", "soap"), attribute.String("rpc.method", "rgWsPublicVersionInfo")),
	)
	defer func() { endSpan(span, err) }()

	var resp responseEnvelope
	if err := c.call(ctx, newEnvelope(versionMethod{}, "", ""), &resp); err != nil {
		return "", err
	}
	if resp.Body.VersionResponse == nil {
		return "", registry.NewProviderError(registry.ErrorContractMismatch, ProviderID, "response has no rgWsPublicVersionInfoResponse", nil)
	}
	return strings.TrimSpace(resp.Body.VersionResponse.Result), nil
}

// call posts env and decodes the reply into out. SOAP faults and transport
// failures come back as *registry.ProviderError.
func (c *Client) call(ctx context.Context, env envelope, out *responseEnvelope) error {
	payload, err := xml.Marshal(env)
	if err != nil {
		return registry.NewProviderError(registry.ErrorInternal, ProviderID, "encode request", err)
	}
	body := append([]byte(xml.Header), payload...)

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return registry.NewProviderError(registry.ErrorInternal, ProviderID, "build request", err)
	}
	httpReq.Header.Set("Content-Type", "text/xml; charset=utf-8")
	httpReq.Header.Set("SOAPAction", `""`)
	if requestID := requestcontext.RequestID(ctx); requestID != "" {
		httpReq.Header.Set("X-Request-ID", requestID)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return classifyTransportError(err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return classifyTransportError(err)
	}

	decodeErr := xml.Unmarshal(raw, out)
	if decodeErr == nil && out.Body.Fault != nil {
		return classifyFault(out.Body.Fault)
	}

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return registry.NewProviderError(registry.ErrorAuthentication, ProviderID, fmt.Sprintf("status %d", resp.StatusCode), nil)
	case resp.StatusCode >= http.StatusInternalServerError:
		return registry.NewProviderError(registry.ErrorProviderOutage, ProviderID, fmt.Sprintf("status %d", resp.StatusCode), nil)
	case resp.StatusCode >= http.StatusBadRequest:
		return registry.NewProviderError(registry.ErrorContractMismatch, ProviderID, fmt.Sprintf("status %d", resp.StatusCode), nil)
	}
	if decodeErr != nil {
		return registry.NewProviderError(registry.ErrorBadData, ProviderID, "decode response", decodeErr)
	}
	return nil
}

func classifyTransportError(err error) error {
	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
		return registry.NewProviderError(registry.ErrorTimeout, ProviderID, "request timed out", err)
	}
	if errors.Is(err, context.Canceled) {
		return registry.NewProviderError(registry.ErrorInternal, ProviderID, "request cancelled", err)
	}
	return registry.NewProviderError(registry.ErrorProviderOutage, ProviderID, "request failed", err)
}

func classifyFault(f *fault) error {
	msg := strings.TrimSpace(f.Code + ": " + f.String)
	lower := strings.ToLower(f.Code + " " + f.String)
	switch {
	case strings.Contains(lower, "authenticat"), strings.Contains(lower, "security"):
		return registry.NewProviderError(registry.ErrorAuthentication, ProviderID, msg, nil)
	case strings.Contains(lower, "server"):
		return registry.NewProviderError(registry.ErrorProviderOutage, ProviderID, msg, nil)
	default:
		return registry.NewProviderError(registry.ErrorContractMismatch, ProviderID, msg, nil)
	}
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}
