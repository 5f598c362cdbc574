package gateway

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

	"github.com/jrsteele09/customs-console/internal/errors"
	"github.com/rs/zerolog"
	"golang.org/x/oauth2"
)

const (
	DefaultTimeout = 30 * time.Second
	maxErrorBody   = 1 << 20
)

// SessionSource is the part of the session state the gateway needs.
type SessionSource interface {
	AccessToken() string
	Logout()
}

type Level string

const (
	LevelError   Level = "error"
	LevelSuccess Level = "success"
	LevelInfo    Level = "info"
)

// Notifier shows a transient message to the operator.
type Notifier interface {
	Notify(ctx context.Context, level Level, message string)
}

// Navigator sends the operator to another page.
type Navigator interface {
	Navigate(ctx context.Context, path string)
}

type nopNotifier struct{}

func (nopNotifier) Notify(context.Context, Level, string) {}

type nopNavigator struct{}

func (nopNavigator) Navigate(context.Context, string) {}

// Client is the single way the console talks to the customs API. It attaches
// the bearer token, applies the timeout and classifies every failure once.
type Client struct {
	baseURL   string
	http      *http.Client
	session   SessionSource
	notifier  Notifier
	navigator Navigator
	log       zerolog.Logger
}

type Option func(*Client)

func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.http.Timeout = d
	}
}

// WithHTTPClient replaces the underlying client. Its Timeout is kept as is.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) {
		c.http = h
	}
}

func WithNotifier(n Notifier) Option {
	return func(c *Client) {
		c.notifier = n
	}
}

func WithNavigator(n Navigator) Option {
	return func(c *Client) {
		c.navigator = n
	}
}

func WithLogger(l zerolog.Logger) Option {
	return func(c *Client) {
		c.log = l
	}
}

func New(baseURL string, session SessionSource, opts ...Option) (*Client, error) {
	if _, err := url.ParseRequestURI(baseURL); err != nil {
		return nil, fmt.Errorf("[gateway New] invalid base URL %q: %w", baseURL, err)
	}
	if session == nil {
		return nil, fmt.Errorf("[gateway New] session is required")
	}
	c := &Client{
		baseURL:   strings.TrimRight(baseURL, "/"),
		http:      &http.Client{Timeout: DefaultTimeout},
		session:   session,
		notifier:  nopNotifier{},
		navigator: nopNavigator{},
		log:       zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

type requestOptions struct {
	bearer     string
	query      url.Values
	messageFor func(*Error) (string, bool)
	quiet      bool
	anonymous  bool

	// set when the request carried the session's own token
	sessionToken bool
}

type RequestOption func(*requestOptions)

// WithBearer sends token instead of the session's token. Used when a token
// has been issued but not yet committed to the session.
func WithBearer(token string) RequestOption {
	return func(o *requestOptions) {
		o.bearer = token
	}
}

// Anonymous sends the request without the session's token. Used for
// credential exchanges, whose 401 means rejected credentials rather than an
// expired session.
func Anonymous() RequestOption {
	return func(o *requestOptions) {
		o.anonymous = true
	}
}

func WithQuery(q url.Values) RequestOption {
	return func(o *requestOptions) {
		o.query = q
	}
}

// WithErrorMessage lets one call site supply its own toast copy. fn returns
// false to fall back to the standard message.
func WithErrorMessage(fn func(*Error) (string, bool)) RequestOption {
	return func(o *requestOptions) {
		o.messageFor = fn
	}
}

// Quiet suppresses toasts for best-effort background calls. 401 handling
// still applies.
func Quiet() RequestOption {
	return func(o *requestOptions) {
		o.quiet = true
	}
}

func (c *Client) Get(ctx context.Context, path string, out any, opts ...RequestOption) error {
	return c.Do(ctx, http.MethodGet, path, nil, out, opts...)
}

func (c *Client) Post(ctx context.Context, path string, body, out any, opts ...RequestOption) error {
	return c.Do(ctx, http.MethodPost, path, body, out, opts...)
}

func (c *Client) Delete(ctx context.Context, path string, out any, opts ...RequestOption) error {
	return c.Do(ctx, http.MethodDelete, path, nil, out, opts...)
}

// Do performs one API call. A nil body sends no payload; a nil out discards
// the response. On failure the error has already been presented to the
// operator, and callers only need it for flow-specific recovery.
func (c *Client) Do(ctx context.Context, method, path string, body, out any, opts ...RequestOption) error {
	var ro requestOptions
	for _, opt := range opts {
		opt(&ro)
	}

	req, err := c.newRequest(ctx, method, path, body, &ro)
	if err != nil {
		return err
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			// The caller went away; nobody is left to show anything to.
			return errors.Wrapf(ctx.Err(), "[gateway Do] %s %s", method, path)
		}
		apiErr := &Error{Kind: KindUnreachable, Method: method, Path: path, cause: err}
		c.present(ctx, apiErr, ro)
		return apiErr
	}
	defer resp.Body.Close()

	c.log.Debug().
		Str("method", method).
		Str("path", path).
		Int("status", resp.StatusCode).
		Dur("latency", time.Since(start)).
		Msg("api call")

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		apiErr := &Error{
			Kind:   kindForStatus(resp.StatusCode),
			Status: resp.StatusCode,
			Info:   ParseErrorInfo(raw),
			Method: method,
			Path:   path,
		}
		c.present(ctx, apiErr, ro)
		return apiErr
	}

	if out == nil || resp.StatusCode == http.StatusNoContent {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil && err != io.EOF {
		c.log.Error().Err(err).Str("method", method).Str("path", path).Msg("undecodable api response")
		apiErr := &Error{
			Kind:   KindOther,
			Status: resp.StatusCode,
			Info:   ErrorInfo{Message: GenericMessage},
			Method: method,
			Path:   path,
			cause:  err,
		}
		c.present(ctx, apiErr, ro)
		return apiErr
	}
	return nil
}

func (c *Client) newRequest(ctx context.Context, method, path string, body any, ro *requestOptions) (*http.Request, error) {
	target := c.baseURL + path
	if len(ro.query) > 0 {
		target += "?" + ro.query.Encode()
	}

	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("[gateway Do] encode %s %s: %w", method, path, err)
		}
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return nil, fmt.Errorf("[gateway Do] build %s %s: %w", method, path, err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	token := ro.bearer
	if token == "" && !ro.anonymous {
		token = c.session.AccessToken()
		ro.sessionToken = token != ""
	}
	if token != "" {
		(&oauth2.Token{AccessToken: token, TokenType: "Bearer"}).SetAuthHeader(req)
	}
	return req, nil
}

// present applies the side effects for a failed call. A 401 on a request that
// carried the session token ends the session and leaves the protected area.
// A 401 on a credential exchange is a rejected login and is shown like any
// other failure.
func (c *Client) present(ctx context.Context, e *Error, ro requestOptions) {
	c.log.Warn().
		Str("method", e.Method).
		Str("path", e.Path).
		Int("status", e.Status).
		Str("kind", e.Kind.String()).
		Str("message", e.Info.Message).
		Msg("api call failed")

	message := e.ToastMessage()
	if e.Kind == KindUnauthorized && !ro.sessionToken {
		message = e.Info.Message
	}
	if ro.messageFor != nil {
		if m, ok := ro.messageFor(e); ok {
			message = m
		}
	}

	if e.Kind == KindUnauthorized && ro.sessionToken {
		c.session.Logout()
		if location := LocationFrom(ctx); !IsPublicPath(location) {
			c.navigator.Navigate(ctx, "/login")
		}
	}

	if message == "" || ro.quiet {
		return
	}
	c.notifier.Notify(ctx, LevelError, message)
}
