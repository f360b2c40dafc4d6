// Package portal emulates a browser driving the PJATK schedule portal's
// ASP.NET WebForms postback protocol: an initial GET that seeds the
// hidden __VIEWSTATE-family fields, and a sequence of POST "postbacks"
// that advance the page's server-side state one __EVENTTARGET at a
// time. A Client is not safe for concurrent use — the portal's session
// is a single-threaded conversation, so internal/scheduleparser never
// shares one Client across goroutines.
package portal

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/hdbg/pjatkbot-go/internal/httpkit"
)

const maxBodyBytes = 8 << 20 // 8MiB; the schedule page is small, this only guards against a misbehaving server

// Client drives one postback conversation against the schedule portal.
type Client struct {
	http    *http.Client
	baseURL string
	state   State
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient overrides the underlying *http.Client, e.g. in tests
// that point baseURL at an httptest.Server.
func WithHTTPClient(c *http.Client) Option {
	return func(cl *Client) { cl.http = c }
}

// New creates a Client for the given portal URL. userAgent should match
// a real browser's — the portal's ASP.NET session affinity and anti-bot
// heuristics key off it looking ordinary, unlike the module's own
// outbound HTTP calls which identify themselves via buildinfo.UserAgent.
func New(baseURL, userAgent string, opts ...Option) (*Client, error) {
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, fmt.Errorf("portal: cookie jar: %w", err)
	}

	httpClient := httpkit.NewClient(
		httpkit.WithUserAgent(userAgent),
		httpkit.WithRetry(3, 2*time.Second),
		httpkit.WithTimeout(30*time.Second),
	)
	httpClient.Jar = jar

	c := &Client{
		baseURL: baseURL,
		state:   State{},
		http:    httpClient,
	}
	for _, o := range opts {
		o(c)
	}
	return c, nil
}

// Initial performs the conversation-opening GET and seeds State from
// the returned page's hidden fields.
func (c *Client) Initial(ctx context.Context) (*goquery.Document, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL, nil)
	if err != nil {
		return nil, wrapHTTP(err)
	}

	doc, _, err := c.do(req, false)
	if err != nil {
		return nil, err
	}
	c.state.updateFromHTML(doc)
	return doc, nil
}

// Event performs an __EVENTTARGET/__EVENTARGUMENT postback. overrides
// are merged over the client's current state before __EVENTTARGET and
// __EVENTARGUMENT are set, letting callers supply one-shot fields (a
// date picker's ClientState JSON, a tooltip manager's client state)
// without polluting State for subsequent postbacks.
//
// delta must be true when this postback is expected to come back as a
// partial-render AJAX response (Delta=true); in that case only the
// trailing pipe-delimited state record is applied. Otherwise the
// response is parsed as a full page, same as Initial.
func (c *Client) Event(ctx context.Context, target, argument string, delta bool, overrides map[string]string) (*goquery.Document, error) {
	form := c.state.Clone()
	for k, v := range overrides {
		form[k] = v
	}
	form["__EVENTTARGET"] = target
	form["__EVENTARGUMENT"] = argument

	values := url.Values{}
	for k, v := range form {
		values.Set(k, v)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL, strings.NewReader(values.Encode()))
	if err != nil {
		return nil, wrapHTTP(err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded; charset=UTF-8")
	req.Header.Set("X-Requested-With", "XMLHttpRequest")
	if delta {
		req.Header.Set("X-MicrosoftAjax", "Delta=true")
	}

	doc, raw, err := c.do(req, delta)
	if err != nil {
		return nil, err
	}

	if delta {
		trailer, terr := lastLine(raw)
		if terr != nil {
			return nil, terr
		}
		c.state.updateFromFragment(trailer)
		return doc, nil
	}

	c.state.updateFromHTML(doc)
	return doc, nil
}

// do executes req, enforces a 2xx status, and returns the parsed
// document alongside the raw body (needed by Event to recover the
// delta trailer, which goquery's HTML parse discards).
func (c *Client) do(req *http.Request, delta bool) (*goquery.Document, string, error) {
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, "", wrapHTTP(err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, "", wrapHTTP(fmt.Errorf("reading response body: %w", err))
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, "", wrapHTTP(fmt.Errorf("unexpected status %d", resp.StatusCode))
	}

	raw := string(body)

	// A delta response's document portion is everything but its first
	// line (ASP.NET AJAX framing: byte count and control ids, no markup)
	// and its last line (the pipe-delimited state-update trailer). Parse
	// only what's left as HTML so neither stray line confuses goquery.
	htmlPart := raw
	if delta {
		lines := strings.Split(raw, "\n")
		if len(lines) > 0 {
			lines = lines[1:]
		}
		if len(lines) > 0 {
			lines = lines[:len(lines)-1]
		}
		htmlPart = strings.Join(lines, "\n")
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(htmlPart))
	if err != nil {
		return nil, "", wrapParsingFailed(fmt.Errorf("parsing response body: %w", err))
	}

	return doc, raw, nil
}

// lastLine returns the final non-empty line of a delta response — the
// pipe-delimited state-update record — or KindBodyAbrupted if the body
// had no line break at all, which means the server cut off before
// sending the trailer we depend on for the next postback.
func lastLine(raw string) (string, error) {
	trimmed := strings.TrimRight(raw, "\n")
	idx := strings.LastIndexByte(trimmed, '\n')
	if idx < 0 {
		return "", wrapBodyAbrupted(fmt.Errorf("response has no state-update trailer"))
	}
	return trimmed[idx+1:], nil
}
