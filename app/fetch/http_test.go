package fetch

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestHTTPClient_Success(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("User-Agent"); !strings.Contains(got, "nightfeed") {
			t.Errorf("Expected nightfeed user agent, got %q", got)
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Write([]byte("<html><body><h1>ok</h1></body></html>"))
	}))
	defer srv.Close()

	c := NewHTTPClient("nightfeed/0.2", 5*time.Second)
	res, err := c.Fetch(context.Background(), srv.URL)
	if err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}
	if !strings.Contains(res.HTML, "<h1>ok</h1>") {
		t.Errorf("Unexpected body: %q", res.HTML)
	}
	if res.FinalURL != srv.URL {
		t.Errorf("Expected final URL %q, got %q", srv.URL, res.FinalURL)
	}
}

func TestHTTPClient_SchemeRejected(t *testing.T) {
	c := NewHTTPClient("nightfeed/0.2", time.Second)
	for _, u := range []string{"ftp://example.com/x", "file:///etc/passwd", "not a url"} {
		_, err := c.Fetch(context.Background(), u)
		if !IsKind(err, KindScheme) {
			t.Errorf("Fetch(%q) = %v, want scheme rejection", u, err)
		}
	}
}

func TestHTTPClient_RedirectRejected(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "https://elsewhere.example.com/", http.StatusFound)
	}))
	defer srv.Close()

	c := NewHTTPClient("nightfeed/0.2", 5*time.Second)
	_, err := c.Fetch(context.Background(), srv.URL)
	if !IsKind(err, KindRedirect) {
		t.Fatalf("Expected redirect rejection, got %v", err)
	}
}

func TestHTTPClient_StatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "gone", http.StatusNotFound)
	}))
	defer srv.Close()

	c := NewHTTPClient("nightfeed/0.2", 5*time.Second)
	_, err := c.Fetch(context.Background(), srv.URL)
	if !IsKind(err, KindHTTPStatus) {
		t.Fatalf("Expected status error, got %v", err)
	}
}

func TestHTTPClient_NonHTMLRejected(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"not": "html"}`))
	}))
	defer srv.Close()

	c := NewHTTPClient("nightfeed/0.2", 5*time.Second)
	_, err := c.Fetch(context.Background(), srv.URL)
	if !IsKind(err, KindHTTPStatus) {
		t.Fatalf("Expected content-type rejection, got %v", err)
	}
}

func TestHTTPClient_TooLarge(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		chunk := strings.Repeat("x", 64*1024)
		for written := 0; written <= MaxResponseBytes; written += len(chunk) {
			if _, err := w.Write([]byte(chunk)); err != nil {
				return
			}
		}
	}))
	defer srv.Close()

	c := NewHTTPClient("nightfeed/0.2", 30*time.Second)
	_, err := c.Fetch(context.Background(), srv.URL)
	if !IsKind(err, KindTooLarge) {
		t.Fatalf("Expected size cap failure, got %v", err)
	}
}

func TestHTTPClient_Timeout(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-release
	}))
	defer srv.Close()
	defer close(release)

	c := NewHTTPClient("nightfeed/0.2", 100*time.Millisecond)
	_, err := c.Fetch(context.Background(), srv.URL)
	if !IsKind(err, KindTimeout) {
		t.Fatalf("Expected timeout, got %v", err)
	}
}

func TestParseMode(t *testing.T) {
	tests := []struct {
		in      string
		want    Mode
		wantErr bool
	}{
		{"http", ModeHTTP, false},
		{"browser", ModeBrowser, false},
		{"", ModeHTTP, false},
		{"curl", "", true},
	}
	for _, tt := range tests {
		got, err := ParseMode(tt.in)
		if tt.wantErr {
			if err == nil {
				t.Errorf("ParseMode(%q) should fail", tt.in)
			}
			continue
		}
		if err != nil || got != tt.want {
			t.Errorf("ParseMode(%q) = %q, %v; want %q", tt.in, got, err, tt.want)
		}
	}
}
