package feed

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"html"
	"time"

	"github.com/nightfeed/nightfeed/app/cfg"
	"github.com/nightfeed/nightfeed/app/database"
)

type Generator struct{}

func NewGenerator() *Generator {
	return &Generator{}
}

// Run renders the stored items of a profile as an RSS 2.0 document. The
// channel link points at the source page, the self link at the feed URL.
func (g *Generator) Run(profile database.Profile, items []database.Item) (string, error) {
	var buf bytes.Buffer

	buf.WriteString(`<?xml version="1.0" encoding="UTF-8"?>`)
	buf.WriteString("\n")
	buf.WriteString(`<rss version="2.0" xmlns:atom="http://www.w3.org/2005/Atom">`)
	buf.WriteString("\n  <channel>\n")

	g.writeElement(&buf, "title", profile.Title, 4)
	g.writeElement(&buf, "link", profile.SourceURL, 4)
	g.writeElement(&buf, "description", fmt.Sprintf("Generated feed from %s", profile.SourceURL), 4)

	buf.WriteString(fmt.Sprintf("    <atom:link href=\"%s\" rel=\"self\" type=\"application/rss+xml\" />\n",
		html.EscapeString(FeedURL(profile.Token))))

	lastBuildDate := time.Now().In(time.Local)
	if len(items) > 0 {
		lastBuildDate = items[0].FirstSeenAt
	}
	g.writeElement(&buf, "lastBuildDate", lastBuildDate.Format(time.RFC1123Z), 4)
	g.writeElement(&buf, "generator", fmt.Sprintf("nightfeed/%s", cfg.Get().Version), 4)

	for _, item := range items {
		g.writeItem(&buf, item)
	}

	buf.WriteString("  </channel>\n</rss>")

	return buf.String(), nil
}

// FeedURL returns the public URL a feed reader subscribes to.
func FeedURL(token string) string {
	if cfg.Get().BaseUrl != "" {
		return fmt.Sprintf("%s/feeds/%s.xml", cfg.Get().BaseUrl, token)
	}
	return fmt.Sprintf("http://localhost:%s/feeds/%s.xml", cfg.Get().Port, token)
}

func (g *Generator) writeItem(buf *bytes.Buffer, item database.Item) {
	buf.WriteString("    <item>\n")

	// The link doubles as the stable identity of an item.
	buf.WriteString("      <guid isPermaLink=\"true\">")
	xml.EscapeText(buf, []byte(item.Link))
	buf.WriteString("</guid>\n")

	g.writeElement(buf, "title", item.Title, 6)
	g.writeElement(buf, "link", item.Link, 6)
	g.writeElement(buf, "description", item.Summary, 6)
	g.writeElement(buf, "pubDate", item.FirstSeenAt.Format(time.RFC1123Z), 6)

	buf.WriteString("    </item>\n")
}

func (g *Generator) writeElement(buf *bytes.Buffer, tag, content string, indent int) {
	if content == "" {
		return
	}

	for i := 0; i < indent; i++ {
		buf.WriteByte(' ')
	}

	buf.WriteString("<")
	buf.WriteString(tag)
	buf.WriteString(">")
	xml.EscapeText(buf, []byte(content))
	buf.WriteString("</")
	buf.WriteString(tag)
	buf.WriteString(">\n")
}
