// package transport provides the terminal middleware of the pipeline,
// which posts requests to an upstream EVM JSON-RPC endpoint over HTTP
package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"syscall"
	"time"

	"github.com/cenkalti/backoff"

	"github.com/kava-labs/evm-rpc-middleware/decode"
	"github.com/kava-labs/evm-rpc-middleware/engine"
	"github.com/kava-labs/evm-rpc-middleware/logging"
	"github.com/kava-labs/evm-rpc-middleware/metrics"
)

const (
	DefaultMaxAttempts   = 5
	DefaultRetryInterval = time.Second
	DefaultTimeout       = 30 * time.Second

	rateLimitedMessage    = "Request is being rate limited."
	gatewayTimeoutMessage = "Gateway timeout. The request took too long to process. " +
		"This can happen when querying logs over too wide a block range."
	methodNotFoundMessage = "The method does not exist / is not available."
	internalErrorMessage  = "Internal JSON-RPC error."
)

// FetchConfig wraps values used for creating a new fetch middleware
type FetchConfig struct {
	// RPCURL is the upstream endpoint, user info in the url is sent as basic auth
	RPCURL string
	// OriginHTTPHeaderKey names the header carrying the request origin, unset disables it
	OriginHTTPHeaderKey string
	MaxAttempts         int
	RetryInterval       time.Duration
	Timeout             time.Duration
	// HTTPClient overrides the client built from Timeout
	HTTPClient *http.Client
}

type fetcher struct {
	url             string
	username        string
	password        string
	hasAuth         bool
	originHeaderKey string
	maxAttempts     int
	retryInterval   time.Duration
	client          *http.Client
	logger          *logging.ServiceLogger
}

// fetchError is a json-rpc error and whether the attempt producing it may be retried
type fetchError struct {
	rpcErr    *decode.JsonRpcError
	retriable bool
}

func (e *fetchError) Error() string {
	return e.rpcErr.Error()
}

// payload holds only the canonical json-rpc fields of a request
type payload struct {
	ID      interface{}   `json:"id"`
	JSONRPC string        `json:"jsonrpc"`
	Method  string        `json:"method"`
	Params  []interface{} `json:"params"`
}

type upstreamResponse struct {
	Result json.RawMessage `json:"result"`
	Error  json.RawMessage `json:"error"`
}

// NewFetchMiddleware creates a terminal middleware sending requests to config.RPCURL,
// returning error (if any) if the url is invalid
func NewFetchMiddleware(config FetchConfig, logger *logging.ServiceLogger) (engine.Middleware, error) {
	f, err := newFetcher(config, logger)
	if err != nil {
		return nil, err
	}

	return func(_ engine.Handler) engine.Handler {
		return engine.HandlerFunc(f.handle)
	}, nil
}

func newFetcher(config FetchConfig, logger *logging.ServiceLogger) (*fetcher, error) {
	parsedURL, err := url.Parse(config.RPCURL)
	if err != nil {
		return nil, fmt.Errorf("invalid upstream rpc url %q: %w", config.RPCURL, err)
	}

	if parsedURL.Scheme == "" || parsedURL.Host == "" {
		return nil, fmt.Errorf("invalid upstream rpc url %q: scheme and host are required", config.RPCURL)
	}

	f := &fetcher{
		originHeaderKey: config.OriginHTTPHeaderKey,
		maxAttempts:     config.MaxAttempts,
		retryInterval:   config.RetryInterval,
		client:          config.HTTPClient,
		logger:          logger,
	}

	// credentials go in a header, never in the url
	if parsedURL.User != nil {
		f.username = parsedURL.User.Username()
		f.password, f.hasAuth = parsedURL.User.Password()
		parsedURL.User = nil
	}
	f.url = parsedURL.String()

	if f.maxAttempts <= 0 {
		f.maxAttempts = DefaultMaxAttempts
	}

	if f.retryInterval < 0 {
		f.retryInterval = DefaultRetryInterval
	}

	if f.client == nil {
		timeout := config.Timeout
		if timeout <= 0 {
			timeout = DefaultTimeout
		}
		f.client = &http.Client{Timeout: timeout}
	}

	return f, nil
}

func (f *fetcher) handle(ctx context.Context, req *decode.EVMRPCRequestEnvelope, res *decode.JsonRpcResponse) error {
	body, err := f.marshalPayload(req)
	if err != nil {
		return decode.NewInternalError(fmt.Sprintf("failed to encode request: %s", err), nil)
	}

	var (
		result  json.RawMessage
		attempt int
	)

	policy := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewConstantBackOff(f.retryInterval), uint64(f.maxAttempts-1)),
		ctx,
	)

	err = backoff.RetryNotify(func() error {
		attempt++

		var fetchErr *fetchError
		result, fetchErr = f.fetch(ctx, req, body)
		if fetchErr == nil {
			return nil
		}

		if !fetchErr.retriable {
			return backoff.Permanent(fetchErr)
		}

		return fetchErr
	}, policy, func(err error, wait time.Duration) {
		metrics.RecordRetry("fetch")
		f.logger.Debug().
			Str("method", req.Method).
			Int("attempt", attempt).
			Dur("retry_in", wait).
			Err(err).
			Msg("retrying upstream request")
	})
	if err != nil {
		var fetchErr *fetchError
		if errors.As(err, &fetchErr) {
			return fetchErr.rpcErr
		}

		return err
	}

	res.Result = result

	return nil
}

func (f *fetcher) marshalPayload(req *decode.EVMRPCRequestEnvelope) ([]byte, error) {
	params := req.Params
	if params == nil {
		params = []interface{}{}
	}

	return json.Marshal(payload{
		ID:      req.ID,
		JSONRPC: req.JSONRPCVersion,
		Method:  req.Method,
		Params:  params,
	})
}

func (f *fetcher) fetch(ctx context.Context, req *decode.EVMRPCRequestEnvelope, body []byte) (json.RawMessage, *fetchError) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, f.url, bytes.NewReader(body))
	if err != nil {
		return nil, &fetchError{rpcErr: decode.NewInternalError(fmt.Sprintf("failed to create request: %s", err), nil)}
	}

	httpReq.Header.Set("Accept", "application/json")
	httpReq.Header.Set("Content-Type", "application/json")

	if f.hasAuth {
		httpReq.SetBasicAuth(f.username, f.password)
	}

	if f.originHeaderKey != "" && req.Origin != "" {
		httpReq.Header.Set(f.originHeaderKey, req.Origin)
	}

	start := time.Now()
	httpRes, err := f.client.Do(httpReq)
	if err != nil {
		metrics.RecordUpstreamRequest(0, time.Since(start))
		return nil, &fetchError{
			rpcErr:    decode.NewInternalError(fmt.Sprintf("failed to fetch: %s", err), nil),
			retriable: isRetriableNetworkError(ctx, err),
		}
	}
	defer httpRes.Body.Close()

	metrics.RecordUpstreamRequest(httpRes.StatusCode, time.Since(start))

	switch httpRes.StatusCode {
	case http.StatusMethodNotAllowed:
		return nil, &fetchError{rpcErr: decode.NewJsonRpcError(decode.ErrorCodeMethodNotFound, methodNotFoundMessage, nil)}
	case http.StatusTeapot:
		return nil, &fetchError{rpcErr: decode.NewJsonRpcError(decode.ErrorCodeLimitExceeded, rateLimitedMessage, nil)}
	case http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return nil, &fetchError{rpcErr: decode.NewInternalError(gatewayTimeoutMessage, nil), retriable: true}
	}

	rawBody, err := io.ReadAll(httpRes.Body)
	if err != nil {
		return nil, &fetchError{
			rpcErr:    decode.NewInternalError(fmt.Sprintf("failed to read response body: %s", err), nil),
			retriable: true,
		}
	}

	var parsed upstreamResponse
	if err := json.Unmarshal(rawBody, &parsed); err != nil {
		return nil, &fetchError{
			rpcErr:    decode.NewInternalError(fmt.Sprintf("failed to parse response body: %q", string(rawBody)), nil),
			retriable: true,
		}
	}

	if httpRes.StatusCode != http.StatusOK {
		rpcErr := decode.NewInternalError(fmt.Sprintf("Non-200 status code: '%d'", httpRes.StatusCode), nil)
		rpcErr.Data = rawBody
		return nil, &fetchError{rpcErr: rpcErr}
	}

	if len(parsed.Error) != 0 && !bytes.Equal(parsed.Error, []byte("null")) {
		rpcErr := decode.NewInternalError(internalErrorMessage, nil)
		rpcErr.Data = parsed.Error
		return nil, &fetchError{rpcErr: rpcErr}
	}

	f.logger.Trace().
		Str("method", req.Method).
		Int("status", httpRes.StatusCode).
		Msg("upstream request succeeded")

	return parsed.Result, nil
}

// isRetriableNetworkError reports whether a failed round trip may succeed if
// attempted again, requests cancelled by the caller are never retried
func isRetriableNetworkError(ctx context.Context, err error) bool {
	if ctx.Err() != nil {
		return false
	}

	if errors.Is(err, syscall.ECONNREFUSED) || errors.Is(err, syscall.ECONNRESET) || errors.Is(err, io.EOF) {
		return true
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	return false
}
