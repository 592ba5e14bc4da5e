package fetch

import (
	"context"
	"errors"
	"net/url"
	"strings"
	"time"

	"github.com/chromedp/cdproto/browser"
	"github.com/chromedp/cdproto/cdp"
	cdpfetch "github.com/chromedp/cdproto/fetch"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/cdproto/target"
	"github.com/chromedp/chromedp"
)

// BrowserClient fetches pages through a sandboxed headless Chrome session
// for sources that only render their listing with JavaScript. The sandbox
// invariants are enforced before any page script runs: requests to other
// hosts are failed at the network layer, downloads are denied, popup
// targets are closed, and a primary navigation that leaves the source host
// fails the fetch.
type BrowserClient struct {
	userAgent string
	timeout   time.Duration
	settle    time.Duration
}

func NewBrowserClient(userAgent string, timeout time.Duration) *BrowserClient {
	return &BrowserClient{
		userAgent: userAgent,
		timeout:   timeout,
		settle:    time.Second,
	}
}

func (c *BrowserClient) Fetch(ctx context.Context, rawURL string) (*Result, error) {
	parsed, err := url.Parse(rawURL)
	if err != nil || (parsed.Scheme != "http" && parsed.Scheme != "https") {
		return nil, &Error{Kind: KindScheme, URL: rawURL, Detail: "only http and https URLs are fetched"}
	}
	host := parsed.Host

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.UserAgent(c.userAgent),
		chromedp.Flag("disable-background-networking", true),
	)
	allocCtx, cancelAlloc := chromedp.NewExecAllocator(ctx, opts...)
	defer cancelAlloc()

	browserCtx, cancelBrowser := chromedp.NewContext(allocCtx)
	defer cancelBrowser()

	c.interceptRequests(browserCtx, host)
	c.closePopups(browserCtx)

	resp, err := chromedp.RunResponse(browserCtx,
		browser.SetDownloadBehavior(browser.SetDownloadBehaviorBehaviorDeny),
		network.Enable(),
		cdpfetch.Enable(),
		chromedp.Navigate(rawURL),
	)
	if err != nil {
		return nil, c.classifyBrowserError(rawURL, err)
	}
	if resp != nil && resp.Status >= 400 {
		return nil, &Error{Kind: KindHTTPStatus, URL: rawURL, Status: int(resp.Status),
			Detail: resp.StatusText}
	}

	// Give client-side rendering a moment to settle before snapshotting.
	var pageHTML, location string
	err = chromedp.Run(browserCtx,
		chromedp.Sleep(c.settle),
		chromedp.Location(&location),
		chromedp.OuterHTML("html", &pageHTML, chromedp.ByQuery),
	)
	if err != nil {
		return nil, c.classifyBrowserError(rawURL, err)
	}

	final, err := url.Parse(location)
	if err != nil || final.Host != host {
		return nil, &Error{Kind: KindOffsiteNavigation, URL: rawURL,
			Detail: "navigation left the source host: " + location}
	}

	if len(pageHTML) > MaxResponseBytes {
		return nil, &Error{Kind: KindTooLarge, URL: rawURL, Detail: "rendered document exceeds 2 MB limit"}
	}

	return &Result{HTML: pageHTML, FinalURL: location}, nil
}

// interceptRequests fails every request that is not same-host http(s) and
// aborts heavy resource types the extractor never needs. Blocked requests
// are no-ops from the page's perspective.
func (c *BrowserClient) interceptRequests(ctx context.Context, host string) {
	chromedp.ListenTarget(ctx, func(ev interface{}) {
		paused, ok := ev.(*cdpfetch.EventRequestPaused)
		if !ok {
			return
		}
		go func() {
			tgt := chromedp.FromContext(ctx)
			ectx := cdp.WithExecutor(ctx, tgt.Target)
			if c.allowRequest(paused, host) {
				_ = cdpfetch.ContinueRequest(paused.RequestID).Do(ectx)
			} else {
				_ = cdpfetch.FailRequest(paused.RequestID, network.ErrorReasonBlockedByClient).Do(ectx)
			}
		}()
	})
}

func (c *BrowserClient) allowRequest(ev *cdpfetch.EventRequestPaused, host string) bool {
	switch ev.ResourceType {
	case network.ResourceTypeImage, network.ResourceTypeMedia,
		network.ResourceTypeFont, network.ResourceTypeWebSocket:
		return false
	}
	reqURL, err := url.Parse(ev.Request.URL)
	if err != nil {
		return false
	}
	if reqURL.Scheme != "http" && reqURL.Scheme != "https" {
		return false
	}
	return reqURL.Host == host
}

// closePopups closes any target opened by the page, so window.open and
// target=_blank links never escape the session.
func (c *BrowserClient) closePopups(ctx context.Context) {
	chromedp.ListenBrowser(ctx, func(ev interface{}) {
		created, ok := ev.(*target.EventTargetCreated)
		if !ok || created.TargetInfo.OpenerID == "" {
			return
		}
		go func() {
			tgt := chromedp.FromContext(ctx)
			ectx := cdp.WithExecutor(ctx, tgt.Browser)
			_ = target.CloseTarget(created.TargetInfo.TargetID).Do(ectx)
		}()
	})
}

func (c *BrowserClient) classifyBrowserError(rawURL string, err error) *Error {
	if errors.Is(err, context.DeadlineExceeded) {
		return &Error{Kind: KindTimeout, URL: rawURL, Detail: "browser fetch timed out", cause: err}
	}
	// The primary navigation hitting the interceptor means the configured
	// URL immediately redirected off-host.
	if strings.Contains(err.Error(), "ERR_BLOCKED_BY_CLIENT") {
		return &Error{Kind: KindOffsiteNavigation, URL: rawURL,
			Detail: "primary navigation was blocked leaving the source host", cause: err}
	}
	return &Error{Kind: KindNetwork, URL: rawURL, Detail: err.Error(), cause: err}
}
