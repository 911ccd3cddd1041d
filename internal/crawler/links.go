package crawler

import (
	"bytes"
	"fmt"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// LinkScraper extracts raw link references from a response body.
type LinkScraper func(body []byte) ([]string, error)

var (
	cssURLPattern    = regexp.MustCompile(`url\(\s*(?:"([^"]*)"|'([^']*)'|([^)'"\s]+))\s*\)`)
	cssImportPattern = regexp.MustCompile(`@import\s+(?:"([^"]*)"|'([^']*)')`)
)

// builtinScrapers maps media types to the scrapers shipped with the crawler.
var builtinScrapers = map[string]LinkScraper{
	"text/html":             ScrapeHTML,
	"application/xhtml+xml": ScrapeHTML,
	"text/css":              ScrapeCSS,
}

// ScrapeLinksFor returns the built-in scrapers for the given media types.
// Unknown media types are reported as an error.
func ScrapeLinksFor(mediaTypes []string) (map[string]LinkScraper, error) {
	out := make(map[string]LinkScraper, len(mediaTypes))
	for _, mt := range mediaTypes {
		mt = strings.ToLower(strings.TrimSpace(mt))
		if mt == "" {
			continue
		}
		scraper, ok := builtinScrapers[mt]
		if !ok {
			return nil, fmt.Errorf("no link scraper for media type %q", mt)
		}
		out[mt] = scraper
	}
	return out, nil
}

// DefaultScrapers scrapes HTML and CSS.
func DefaultScrapers() map[string]LinkScraper {
	out, _ := ScrapeLinksFor([]string{"text/html", "text/css"})
	return out
}

// ScrapeHTML returns the link references of an HTML document: anchors,
// stylesheets, scripts, media sources, srcset candidates, and url()
// references inside inline style blocks.
func ScrapeHTML(body []byte) ([]string, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}

	var links []string
	attr := func(selector, name string) {
		doc.Find(selector).Each(func(_ int, s *goquery.Selection) {
			if v, ok := s.Attr(name); ok {
				links = append(links, v)
			}
		})
	}
	attr("a[href]", "href")
	attr("link[href]", "href")
	attr("script[src]", "src")
	attr("img[src]", "src")
	attr("source[src]", "src")
	attr("iframe[src]", "src")
	attr("video[poster]", "poster")

	doc.Find("img[srcset], source[srcset]").Each(func(_ int, s *goquery.Selection) {
		links = append(links, parseSrcset(s.AttrOr("srcset", ""))...)
	})
	doc.Find("style").Each(func(_ int, s *goquery.Selection) {
		css, _ := ScrapeCSS([]byte(s.Text()))
		links = append(links, css...)
	})
	doc.Find("[style]").Each(func(_ int, s *goquery.Selection) {
		css, _ := ScrapeCSS([]byte(s.AttrOr("style", "")))
		links = append(links, css...)
	})

	return compact(links), nil
}

// ScrapeCSS returns the url() and @import references of a stylesheet.
func ScrapeCSS(body []byte) ([]string, error) {
	var links []string
	for _, m := range cssURLPattern.FindAllSubmatch(body, -1) {
		links = append(links, firstGroup(m))
	}
	for _, m := range cssImportPattern.FindAllSubmatch(body, -1) {
		links = append(links, firstGroup(m))
	}
	return compact(links), nil
}

func parseSrcset(srcset string) []string {
	var out []string
	for _, candidate := range strings.Split(srcset, ",") {
		fields := strings.Fields(candidate)
		if len(fields) > 0 {
			out = append(out, fields[0])
		}
	}
	return out
}

func firstGroup(m [][]byte) string {
	for _, g := range m[1:] {
		if len(g) > 0 {
			return string(g)
		}
	}
	return ""
}

// compact trims references and drops empty, fragment-only and data: links.
func compact(links []string) []string {
	out := links[:0]
	for _, l := range links {
		l = strings.TrimSpace(l)
		lower := strings.ToLower(l)
		switch {
		case l == "", strings.HasPrefix(l, "#"):
		case strings.HasPrefix(lower, "data:"),
			strings.HasPrefix(lower, "javascript:"),
			strings.HasPrefix(lower, "mailto:"),
			strings.HasPrefix(lower, "tel:"):
		default:
			out = append(out, l)
		}
	}
	return out
}
