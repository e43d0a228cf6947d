package panel

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/IlyaGulya/remnawave-modulegen/faults"
)

const (
	defaultRequestTimeout = 30 * time.Second
	defaultRetryWait      = time.Second

	headerForwardedProto = "X-Forwarded-Proto"
	headerForwardedFor   = "X-Forwarded-For"
	headerRequestID      = "X-Request-ID"
	headerClientType     = "X-Remnawave-Client-Type"

	clientTypeValue     = "modulegen"
	defaultForwardedFor = "127.0.0.1"
)

type ClientConfig struct {
	BaseURL            string
	Token              string
	Timeout            time.Duration
	RetryWait          time.Duration
	ForwardedFor       string
	InsecureSkipVerify bool
	HTTPClient         *http.Client
	Logger             zerolog.Logger
}

// Client talks to a live panel API. All calls are synchronous and bounded by
// the configured timeout. Read operations get a single retry with backoff on
// transient transport failures; write operations are never retried, so a
// flaky network cannot create duplicate resources.
type Client struct {
	baseURL      *url.URL
	token        string
	timeout      time.Duration
	retryWait    time.Duration
	forwardedFor string
	http         *http.Client
	log          zerolog.Logger
}

func NewClient(cfg ClientConfig) (*Client, error) {
	rawBase := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if rawBase == "" {
		return nil, faults.Newf(faults.ValidationError, "panel base URL is required")
	}
	parsed, err := url.Parse(rawBase)
	if err != nil {
		return nil, faults.New(faults.ValidationError, fmt.Sprintf("invalid panel base URL %q", rawBase), err)
	}
	if parsed.Scheme == "" || parsed.Host == "" {
		return nil, faults.Newf(faults.ValidationError, "panel base URL %q must include scheme and host", rawBase)
	}

	client := &Client{
		baseURL:      parsed,
		token:        cfg.Token,
		timeout:      cfg.Timeout,
		retryWait:    cfg.RetryWait,
		forwardedFor: cfg.ForwardedFor,
		http:         cfg.HTTPClient,
		log:          cfg.Logger,
	}
	if client.timeout <= 0 {
		client.timeout = defaultRequestTimeout
	}
	if client.retryWait <= 0 {
		client.retryWait = defaultRetryWait
	}
	if client.forwardedFor == "" {
		client.forwardedFor = defaultForwardedFor
	}
	if client.http == nil {
		transport := &http.Transport{
			TLSClientConfig: &tls.Config{InsecureSkipVerify: cfg.InsecureSkipVerify},
		}
		client.http = &http.Client{Transport: transport}
	}
	return client, nil
}

// Request issues one API call and returns the status code with the parsed
// JSON body. Non-2xx responses come back as typed failures carrying the
// API's status and structured error code.
func (c *Client) Request(ctx context.Context, method, path string, body any) (int, any, error) {
	var payload []byte
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return 0, nil, faults.New(faults.ValidationError, "cannot encode request body", err)
		}
		payload = encoded
	}

	retriable := method == http.MethodGet
	for attempt := 0; ; attempt++ {
		status, parsed, err := c.do(ctx, method, path, payload)
		if err == nil {
			return status, parsed, nil
		}
		if errors.Is(err, context.DeadlineExceeded) {
			return 0, nil, &faults.Error{
				Category: faults.TimeoutError,
				Message:  method + " " + path + " exceeded the request timeout",
				Cause:    err,
			}
		}
		var fault *faults.Error
		if errors.As(err, &fault) {
			return status, parsed, err
		}
		if retriable && attempt == 0 && isTransient(err) {
			c.log.Debug().Str("path", path).Err(err).Msg("transient read failure, retrying once")
			select {
			case <-time.After(c.retryWait):
			case <-ctx.Done():
				return 0, nil, faults.New(faults.TimeoutError, method+" "+path+" canceled during retry backoff", ctx.Err())
			}
			continue
		}
		return 0, nil, faults.New(faults.TransportError, method+" "+path+" failed", err)
	}
}

func (c *Client) do(ctx context.Context, method, path string, payload []byte) (int, any, error) {
	callCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var reader io.Reader
	if payload != nil {
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(callCtx, method, c.baseURL.String()+path, reader)
	if err != nil {
		return 0, nil, err
	}

	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	req.Header.Set(headerForwardedProto, "https")
	req.Header.Set(headerForwardedFor, c.forwardedFor)
	req.Header.Set(headerRequestID, uuid.NewString())
	if isTokenCreation(method, path) {
		req.Header.Set(headerClientType, clientTypeValue)
	}

	c.log.Debug().Str("method", method).Str("path", path).Msg("panel request")

	resp, err := c.http.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, nil, err
	}

	parsed, err := decodeJSON(raw)
	if err != nil && resp.StatusCode < 300 {
		return resp.StatusCode, nil, fmt.Errorf("cannot decode response body: %w", err)
	}

	if resp.StatusCode >= 300 {
		return resp.StatusCode, parsed, c.apiFault(method, path, resp.StatusCode, parsed)
	}
	return resp.StatusCode, parsed, nil
}

func (c *Client) apiFault(method, path string, status int, body any) *faults.Error {
	category := faults.APIError
	if status == http.StatusNotFound {
		category = faults.NotFoundError
	}
	code, message := apiErrorInfo(body)
	if message == "" {
		message = method + " " + path + " failed"
	}
	return &faults.Error{
		Category:   category,
		StatusCode: status,
		APICode:    code,
		Message:    message,
	}
}

// apiErrorInfo pulls the structured code and message out of a panel error
// body.
func apiErrorInfo(body any) (string, string) {
	obj, ok := body.(map[string]any)
	if !ok {
		return "", ""
	}
	if nested, ok := obj["error"].(map[string]any); ok {
		obj = nested
	}
	code := stringValue(obj["errorCode"])
	if code == "" {
		code = stringValue(obj["code"])
	}
	return code, stringValue(obj["message"])
}

// GetAll fetches a resource collection, extracting the item array from the
// list envelope.
func (c *Client) GetAll(ctx context.Context, path, itemsKey string) ([]map[string]any, error) {
	_, body, err := c.Request(ctx, http.MethodGet, path, nil)
	if err != nil {
		return nil, err
	}
	items, err := ExtractList(body, itemsKey)
	if err != nil {
		return nil, err
	}
	result := make([]map[string]any, 0, len(items))
	for i, item := range items {
		obj, ok := item.(map[string]any)
		if !ok {
			return nil, faults.Newf(faults.NoListFoundError, "list item %d in %s is %T, not an object", i, path, item)
		}
		result = append(result, obj)
	}
	return result, nil
}

// GetOne fetches a single resource by identifier. An absent resource is
// (nil, nil), not an error.
func (c *Client) GetOne(ctx context.Context, pathTemplate, id string) (map[string]any, error) {
	_, body, err := c.Request(ctx, http.MethodGet, ExpandPath(pathTemplate, id), nil)
	if err != nil {
		if faults.IsCategory(err, faults.NotFoundError) {
			return nil, nil
		}
		return nil, err
	}
	return responseObject(body), nil
}

func (c *Client) Create(ctx context.Context, method, path string, payload map[string]any) (map[string]any, error) {
	_, body, err := c.Request(ctx, method, path, payload)
	if err != nil {
		return nil, err
	}
	return responseObject(body), nil
}

func (c *Client) Update(ctx context.Context, method, pathTemplate, id string, payload map[string]any) (map[string]any, error) {
	_, body, err := c.Request(ctx, method, ExpandPath(pathTemplate, id), payload)
	if err != nil {
		return nil, err
	}
	return responseObject(body), nil
}

func (c *Client) Delete(ctx context.Context, pathTemplate, id string) error {
	_, _, err := c.Request(ctx, http.MethodDelete, ExpandPath(pathTemplate, id), nil)
	return err
}

// ExpandPath substitutes the single {param} placeholder of a path template.
// Templates without a placeholder return unchanged.
func ExpandPath(template, id string) string {
	start := strings.Index(template, "{")
	if start < 0 {
		return template
	}
	end := strings.Index(template[start:], "}")
	if end < 0 {
		return template
	}
	return template[:start] + url.PathEscape(id) + template[start+end+1:]
}

func isTokenCreation(method, path string) bool {
	if method != http.MethodPost {
		return false
	}
	return strings.Contains(path, "/auth/") || strings.Contains(path, "/tokens")
}

func isTransient(err error) bool {
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	return errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, io.ErrUnexpectedEOF) ||
		errors.Is(err, io.EOF)
}

func decodeJSON(raw []byte) (any, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return nil, nil
	}
	dec := json.NewDecoder(bytes.NewReader(trimmed))
	dec.UseNumber()
	var value any
	if err := dec.Decode(&value); err != nil {
		return nil, err
	}
	return value, nil
}

func stringValue(v any) string {
	switch typed := v.(type) {
	case string:
		return typed
	case json.Number:
		return typed.String()
	case fmt.Stringer:
		return typed.String()
	default:
		return ""
	}
}
