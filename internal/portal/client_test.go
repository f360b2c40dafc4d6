package portal

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestInitialSeedsHiddenState(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<html><body>
			<input type="hidden" id="__VIEWSTATE" value="abc123" />
			<input type="hidden" id="__EVENTVALIDATION" value="xyz789" />
			<input type="text" id="visible" value="ignored" />
		</body></html>`))
	}))
	defer srv.Close()

	c, err := New(srv.URL, "test-agent")
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}

	if _, err := c.Initial(context.Background()); err != nil {
		t.Fatalf("Initial() error: %v", err)
	}

	if c.state["__VIEWSTATE"] != "abc123" {
		t.Errorf("__VIEWSTATE = %q, want %q", c.state["__VIEWSTATE"], "abc123")
	}
	if c.state["__EVENTVALIDATION"] != "xyz789" {
		t.Errorf("__EVENTVALIDATION = %q, want %q", c.state["__EVENTVALIDATION"], "xyz789")
	}
	if _, ok := c.state["visible"]; ok {
		t.Errorf("non-hidden field leaked into state")
	}
}

func TestEventAppliesDeltaTrailer(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		r.ParseForm()
		if r.Form.Get("__EVENTTARGET") != "DataPicker" {
			t.Errorf("__EVENTTARGET = %q, want %q", r.Form.Get("__EVENTTARGET"), "DataPicker")
		}
		w.Write([]byte("1234\n<div>partial</div>\n5|hiddenField|__VIEWSTATE|updatedvalue|"))
	}))
	defer srv.Close()

	c, err := New(srv.URL, "test-agent")
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	c.state["__VIEWSTATE"] = "original"

	if _, err := c.Event(context.Background(), "DataPicker", "", true, nil); err != nil {
		t.Fatalf("Event() error: %v", err)
	}

	if c.state["__VIEWSTATE"] != "updatedvalue" {
		t.Errorf("__VIEWSTATE after delta = %q, want %q", c.state["__VIEWSTATE"], "updatedvalue")
	}
}

// TestEventStripsLeadingAndTrailingDeltaLines guards against regressing
// to only stripping the trailing state record: a delta response's first
// line is ASP.NET AJAX framing, not markup, and must be dropped too.
func TestEventStripsLeadingAndTrailingDeltaLines(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("998\n<div id=\"payload\">hello</div>\n5|hiddenField|__VIEWSTATE|v|"))
	}))
	defer srv.Close()

	c, err := New(srv.URL, "test-agent")
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}

	doc, err := c.Event(context.Background(), "DataPicker", "", true, nil)
	if err != nil {
		t.Fatalf("Event() error: %v", err)
	}

	if got := doc.Find("#payload").Text(); got != "hello" {
		t.Errorf("#payload text = %q, want %q", got, "hello")
	}
	if strings.Contains(doc.Text(), "998") {
		t.Errorf("parsed document still contains the leading framing line: %q", doc.Text())
	}
}

func TestEventFullPageUpdatesFromHTML(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<html><body><input type="hidden" id="__VIEWSTATE" value="fromhtml" /></body></html>`))
	}))
	defer srv.Close()

	c, err := New(srv.URL, "test-agent")
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}

	if _, err := c.Event(context.Background(), "ctl06", "", false, nil); err != nil {
		t.Fatalf("Event() error: %v", err)
	}

	if c.state["__VIEWSTATE"] != "fromhtml" {
		t.Errorf("__VIEWSTATE = %q, want %q", c.state["__VIEWSTATE"], "fromhtml")
	}
}

func TestInitialRejectsNonOKStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	c, err := New(srv.URL, "test-agent")
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}

	_, err = c.Initial(context.Background())
	if err == nil {
		t.Fatal("expected error for 500 response")
	}
	var pErr *Error
	if !errors.As(err, &pErr) {
		t.Fatalf("error is not *portal.Error: %v", err)
	}
	if pErr.Kind != KindHTTP {
		t.Errorf("Kind = %v, want %v", pErr.Kind, KindHTTP)
	}
}
