package application

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"

	json "github.com/goccy/go-json"
)

const (
	// DefaultBaseURL is the address in-process requests are made against.
	DefaultBaseURL = "http://localhost/"
	// RemoteAddr is the client address the application sees.
	RemoteAddr = "127.0.0.1:1234"
)

// Client issues requests against an application handler without a network
// round trip. It keeps cookies between requests and follows redirects.
type Client struct {
	handler http.Handler
	base    *url.URL
	http    *http.Client
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithBaseURL changes the address requests are made against. It panics
// unless raw is an absolute URL.
func WithBaseURL(raw string) ClientOption {
	u, err := url.Parse(raw)
	if err != nil {
		panic(fmt.Sprintf("invalid base URL %q: %v", raw, err))
	}
	if !u.IsAbs() || u.Host == "" {
		panic(fmt.Sprintf("base URL %q must be absolute", raw))
	}
	return func(c *Client) { c.base = u }
}

// WithoutRedirects returns redirect responses instead of following them.
func WithoutRedirects() ClientOption {
	return func(c *Client) {
		c.http.CheckRedirect = func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		}
	}
}

// NewClient creates a client for handler.
func NewClient(handler http.Handler, opts ...ClientOption) *Client {
	base, _ := url.Parse(DefaultBaseURL)
	c := &Client{
		handler: handler,
		base:    base,
		http: &http.Client{
			Transport: handlerTransport{handler: handler},
			Jar:       newJar(),
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func newJar() http.CookieJar {
	// cookiejar.New only fails on a bad PublicSuffixList
	jar, _ := cookiejar.New(nil)
	return jar
}

// BaseURL returns the address requests are made against.
func (c *Client) BaseURL() *url.URL {
	u := *c.base
	return &u
}

// URL resolves path against the base URL.
func (c *Client) URL(path string) string {
	ref, err := url.Parse(path)
	if err != nil {
		return c.base.String() + strings.TrimPrefix(path, "/")
	}
	return c.base.ResolveReference(ref).String()
}

// Cookies returns the cookies the client would send to the base URL.
func (c *Client) Cookies() []*http.Cookie {
	return c.http.Jar.Cookies(c.base)
}

// Cookie returns the named cookie sent to the base URL.
func (c *Client) Cookie(name string) (*http.Cookie, bool) {
	for _, ck := range c.Cookies() {
		if ck.Name == name {
			return ck, true
		}
	}
	return nil, false
}

// ClearCookies forgets every cookie.
func (c *Client) ClearCookies() {
	c.http.Jar = newJar()
}

// Do sends req. A relative request URL is resolved against the base URL.
func (c *Client) Do(req *http.Request) (*Response, error) {
	if !req.URL.IsAbs() {
		req.URL = c.base.ResolveReference(req.URL)
		req.Host = req.URL.Host
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	return newResponse(resp)
}

// Request builds and sends a request.
func (c *Client) Request(ctx context.Context, method, path string, body io.Reader, header http.Header) (*Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.URL(path), body)
	if err != nil {
		return nil, err
	}
	for k, vs := range header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	return c.Do(req)
}

// Get sends a GET request.
func (c *Client) Get(ctx context.Context, path string) (*Response, error) {
	return c.Request(ctx, http.MethodGet, path, nil, nil)
}

// Delete sends a DELETE request.
func (c *Client) Delete(ctx context.Context, path string) (*Response, error) {
	return c.Request(ctx, http.MethodDelete, path, nil, nil)
}

// PostForm sends a form encoded POST request.
func (c *Client) PostForm(ctx context.Context, path string, form url.Values) (*Response, error) {
	header := http.Header{"Content-Type": {"application/x-www-form-urlencoded"}}
	return c.Request(ctx, http.MethodPost, path, strings.NewReader(form.Encode()), header)
}

// PostJSON sends v as a JSON POST request.
func (c *Client) PostJSON(ctx context.Context, path string, v any) (*Response, error) {
	return c.sendJSON(ctx, http.MethodPost, path, v)
}

// PutJSON sends v as a JSON PUT request.
func (c *Client) PutJSON(ctx context.Context, path string, v any) (*Response, error) {
	return c.sendJSON(ctx, http.MethodPut, path, v)
}

func (c *Client) sendJSON(ctx context.Context, method, path string, v any) (*Response, error) {
	body, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to encode request body: %w", err)
	}
	header := http.Header{"Content-Type": {"application/json"}, "Accept": {"application/json"}}
	return c.Request(ctx, method, path, bytes.NewReader(body), header)
}

// handlerTransport serves requests by calling the handler directly.
type handlerTransport struct {
	handler http.Handler
}

func (t handlerTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	r := req.Clone(req.Context())
	r.RemoteAddr = RemoteAddr
	r.RequestURI = req.URL.RequestURI()
	if r.Body == nil {
		r.Body = http.NoBody
	}

	rec := httptest.NewRecorder()
	t.handler.ServeHTTP(rec, r)

	resp := rec.Result()
	resp.Request = req
	return resp, nil
}

// Response is a fully read response. JSON bodies are decoded on first access.
type Response struct {
	*http.Response

	body []byte

	once    sync.Once
	json    any
	jsonErr error
}

func newResponse(resp *http.Response) (*Response, error) {
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}
	resp.Body = io.NopCloser(bytes.NewReader(body))
	return &Response{Response: resp, body: body}, nil
}

// Bytes returns the raw body.
func (r *Response) Bytes() []byte {
	return r.body
}

// Text returns the body as a string.
func (r *Response) Text() string {
	return string(r.body)
}

// IsJSON reports whether the response declares a JSON body.
func (r *Response) IsJSON() bool {
	mt, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if err != nil {
		return false
	}
	return mt == "application/json" || strings.HasSuffix(mt, "+json")
}

// JSON returns the decoded body, or nil when the response is not JSON or
// cannot be decoded. Use JSONErr to tell the two apart.
func (r *Response) JSON() any {
	r.decode()
	return r.json
}

// JSONErr returns the error decoding the body, if any.
func (r *Response) JSONErr() error {
	r.decode()
	return r.jsonErr
}

func (r *Response) decode() {
	r.once.Do(func() {
		if !r.IsJSON() {
			r.jsonErr = fmt.Errorf("response is not JSON (Content-Type %q)", r.Header.Get("Content-Type"))
			return
		}
		r.jsonErr = json.Unmarshal(r.body, &r.json)
	})
}

// DecodeJSON decodes the body into v.
func (r *Response) DecodeJSON(v any) error {
	if err := json.Unmarshal(r.body, v); err != nil {
		return fmt.Errorf("failed to decode response body: %w", err)
	}
	return nil
}
