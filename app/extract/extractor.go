// Package extract turns raw listing-page HTML plus a selector spec into
// candidate feed items. It performs no network I/O; fetching and filtering
// live elsewhere in the pipeline.
package extract

import (
	"fmt"
	"log/slog"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
)

// Candidate is one extracted item before filtering and deduplication.
type Candidate struct {
	Title   string
	Link    string // absolute, same-host-validated
	Summary string
}

// Result carries the extracted candidates in document order along with
// audit counters for silently dropped nodes.
type Result struct {
	Items          []Candidate
	DroppedOffHost int // links resolving to another host or scheme
	DroppedPartial int // item nodes without a usable title or link
}

// Extractor resolves selector specs against fetched documents.
type Extractor struct{}

func NewExtractor() *Extractor {
	return &Extractor{}
}

// Run extracts candidates from the document. pageURL must be the final URL
// the document was fetched from; item links are resolved against it and
// must stay on its host. Malformed HTML is handled leniently by the parser,
// so an error here means the document could not be tokenized at all.
func (e *Extractor) Run(pageURL string, htmlText string, spec Spec) (Result, error) {
	base, err := url.Parse(pageURL)
	if err != nil || base.Host == "" {
		return Result{}, fmt.Errorf("invalid page URL %q", pageURL)
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(htmlText))
	if err != nil {
		return Result{}, fmt.Errorf("parse document: %w", err)
	}

	nodes := doc.Find(spec.Item)
	res := e.extractFromItemNodes(base, nodes, spec)

	// Listing pages sometimes group many topic links inside one container
	// node. When the per-item pass finds at most one usable entry but a
	// container holds several link matches, expand each link as its own
	// candidate instead.
	if len(res.Items) <= 1 && e.hasGroupedLinks(nodes, spec) {
		expanded := e.extractFromLinkGroups(base, nodes, spec)
		if len(expanded.Items) > len(res.Items) {
			res = expanded
		}
	}

	if res.DroppedOffHost > 0 {
		slog.Warn("Dropped off-host item links", "page", pageURL, "count", res.DroppedOffHost)
	}

	return res, nil
}

func (e *Extractor) extractFromItemNodes(base *url.URL, nodes *goquery.Selection, spec Spec) Result {
	var res Result
	nodes.Each(func(_ int, node *goquery.Selection) {
		cand, status := e.buildCandidate(base, node, findOne(node, spec.Title), findOne(node, spec.Link), "", spec)
		switch status {
		case candidateOK:
			res.Items = append(res.Items, cand)
		case candidateOffHost:
			res.DroppedOffHost++
		case candidatePartial:
			res.DroppedPartial++
		}
	})
	return res
}

func (e *Extractor) hasGroupedLinks(nodes *goquery.Selection, spec Spec) bool {
	grouped := false
	nodes.EachWithBreak(func(_ int, node *goquery.Selection) bool {
		if findAll(node, spec.Link).Length() > 1 {
			grouped = true
			return false
		}
		return true
	})
	return grouped
}

func (e *Extractor) extractFromLinkGroups(base *url.URL, nodes *goquery.Selection, spec Spec) Result {
	var res Result
	seen := make(map[string]bool)

	nodes.Each(func(_ int, node *goquery.Selection) {
		findAll(node, spec.Link).Each(func(_ int, link *goquery.Selection) {
			titleNode := e.groupedLinkTitleNode(link, spec)
			titleText := e.groupedLinkTitleText(link, titleNode, spec)

			cand, status := e.buildCandidate(base, node, titleNode, link, titleText, spec)
			switch status {
			case candidateOK:
				if seen[cand.Link] {
					return
				}
				seen[cand.Link] = true
				res.Items = append(res.Items, cand)
			case candidateOffHost:
				res.DroppedOffHost++
			case candidatePartial:
				res.DroppedPartial++
			}
		})
	})
	return res
}

// groupedLinkTitleNode picks the node whose text names a grouped link.
func (e *Extractor) groupedLinkTitleNode(link *goquery.Selection, spec Spec) *goquery.Selection {
	if isScopeSelector(spec.Title) || spec.Title == spec.Link {
		return link
	}
	if title := findOne(link, spec.Title); title != nil {
		return title
	}
	return link
}

// groupedLinkTitleText recovers a title for a grouped link from the inline
// text around the anchor when the title selector cannot distinguish links.
// Returns "" when the title node's own text should be used.
func (e *Extractor) groupedLinkTitleText(link, titleNode *goquery.Selection, spec Spec) string {
	sameAsLink := isScopeSelector(spec.Title) || spec.Title == spec.Link
	if !sameAsLink {
		return ""
	}
	if titleNode != nil && len(titleNode.Nodes) > 0 && len(link.Nodes) > 0 && titleNode.Nodes[0] != link.Nodes[0] {
		if text := selectionText(titleNode); text != "" {
			return text
		}
	}
	return inlineTitleText(link)
}

type candidateStatus int

const (
	candidateOK candidateStatus = iota
	candidatePartial
	candidateOffHost
)

func (e *Extractor) buildCandidate(base *url.URL, container, titleNode, linkNode *goquery.Selection, titleText string, spec Spec) (Candidate, candidateStatus) {
	if titleNode == nil || linkNode == nil {
		return Candidate{}, candidatePartial
	}

	href, ok := linkNode.Attr("href")
	if !ok || strings.TrimSpace(href) == "" {
		return Candidate{}, candidatePartial
	}

	link, ok := resolveSameHost(base, href)
	if !ok {
		return Candidate{}, candidateOffHost
	}

	title := titleText
	if title == "" {
		title = selectionText(titleNode)
	}
	if title == "" {
		return Candidate{}, candidatePartial
	}

	summary := ""
	if spec.Summary != "" {
		if node := findOne(container, spec.Summary); node != nil {
			summary = selectionText(node)
		}
	}

	return Candidate{Title: title, Link: link, Summary: summary}, candidateOK
}

// resolveSameHost resolves href against the page URL and enforces the
// same-host rule: the item link's host must exactly equal the page's host.
func resolveSameHost(base *url.URL, href string) (string, bool) {
	ref, err := url.Parse(strings.TrimSpace(href))
	if err != nil {
		return "", false
	}
	abs := base.ResolveReference(ref)
	if abs.Scheme != "http" && abs.Scheme != "https" {
		return "", false
	}
	if abs.Host != base.Host {
		return "", false
	}
	return abs.String(), true
}

func findOne(s *goquery.Selection, selector string) *goquery.Selection {
	if isScopeSelector(selector) {
		return s
	}
	found := s.Find(selector)
	if found.Length() == 0 {
		return nil
	}
	return found.First()
}

func findAll(s *goquery.Selection, selector string) *goquery.Selection {
	if isScopeSelector(selector) {
		return s
	}
	return s.Find(selector)
}

// selectionText mirrors space-joined, whitespace-collapsed text extraction.
func selectionText(s *goquery.Selection) string {
	if s == nil || len(s.Nodes) == 0 {
		return ""
	}
	return nodeText(s.Nodes[0])
}

func nodeText(n *html.Node) string {
	var parts []string
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			if t := strings.TrimSpace(n.Data); t != "" {
				parts = append(parts, t)
			}
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return strings.Join(strings.Fields(strings.Join(parts, " ")), " ")
}

// inlineTitleText assembles a title from the text surrounding an anchor,
// scanning siblings outward until a <br> or another anchor marks the
// boundary of the entry.
func inlineTitleText(link *goquery.Selection) string {
	if len(link.Nodes) == 0 {
		return ""
	}
	n := link.Nodes[0]
	anchorText := nodeText(n)
	parent := n.Parent
	if parent == nil {
		return anchorText
	}

	var before []string
	for sib := n.PrevSibling; sib != nil; sib = sib.PrevSibling {
		if isBoundary(sib) {
			break
		}
		if t := nodeText(sib); t != "" {
			before = append([]string{t}, before...)
		}
	}

	parts := append(before, anchorText)

	for sib := n.NextSibling; sib != nil; sib = sib.NextSibling {
		if isBoundary(sib) {
			break
		}
		if t := nodeText(sib); t != "" {
			parts = append(parts, t)
		}
	}

	joined := strings.Join(strings.Fields(strings.Join(parts, " ")), " ")
	if joined == "" {
		return anchorText
	}
	return joined
}

func isBoundary(n *html.Node) bool {
	return n.Type == html.ElementNode && (n.Data == "br" || n.Data == "a")
}
