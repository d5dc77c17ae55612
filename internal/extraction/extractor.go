// Package extraction implements the Content Extractor & Validator (§4.10):
// given rendered HTML it produces a title (with source classification), a
// main-content selection, markdown and table projections, and a link list,
// then validates the result against tier- and domain-aware rules to decide
// whether a failure should trigger a tier retry.
package extraction

import (
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/uzzalhcse/crawlify/pkg/models"
)

// Output is what the Extractor produces for one document. The orchestrator
// folds this into the request's final Result once a tier succeeds.
type Output struct {
	Title       string
	TitleSource models.TitleSource
	Text        string
	Markdown    string
	Tables      []models.Table
	Links       []models.Link
	Confidence  float64
	Attempts    []TitleAttempt
}

// TitleAttempt records one title-selector probe for the DecisionTrace.
type TitleAttempt struct {
	Source   models.TitleSource
	Selector string
	Value    string
	Selected bool
}

// contentContainerSelectors are tried in order; the first one yielding more
// than minContentChars of text wins. body is the fallback of last resort.
var contentContainerSelectors = []string{
	"main",
	"article",
	"[role=main]",
	".content",
	"#content",
	".main",
}

const minContentChars = 100

// Extractor parses HTML documents with goquery — no live browser page is
// required, so it runs the same way against all three rendering tiers'
// output.
type Extractor struct{}

func New() *Extractor {
	return &Extractor{}
}

// Extract produces an Output from raw HTML and the document's final URL
// (used to resolve relative links).
func (e *Extractor) Extract(html, finalURL string) (*Output, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, err
	}

	title, titleSource, attempts := e.extractTitle(doc)
	contentSel, contentNode, confidence := e.selectContentContainer(doc)
	text := cleanText(contentNode.Text())
	tables := e.extractTables(contentNode)
	links := e.extractLinks(doc, finalURL)
	markdown := toMarkdown(contentNode)

	_ = contentSel

	return &Output{
		Title:       title,
		TitleSource: titleSource,
		Text:        text,
		Markdown:    markdown,
		Tables:      tables,
		Links:       links,
		Confidence:  confidence,
		Attempts:    attempts,
	}, nil
}

// extractTitle tries og:title, then <title>, then the first <h1>, in that
// confidence order, and returns every attempt so the orchestrator can
// record them on the DecisionTrace.
func (e *Extractor) extractTitle(doc *goquery.Document) (string, models.TitleSource, []TitleAttempt) {
	var attempts []TitleAttempt

	ogTitle, ok := doc.Find(`meta[property="og:title"]`).First().Attr("content")
	ogTitle = strings.TrimSpace(ogTitle)
	if ok && ogTitle != "" {
		attempts = append(attempts, TitleAttempt{Source: models.TitleSourceOGTitle, Selector: `meta[property="og:title"]`, Value: ogTitle, Selected: true})
		return ogTitle, models.TitleSourceOGTitle, attempts
	}
	if ok {
		attempts = append(attempts, TitleAttempt{Source: models.TitleSourceOGTitle, Selector: `meta[property="og:title"]`, Value: ""})
	}

	titleTag := strings.TrimSpace(doc.Find("title").First().Text())
	if titleTag != "" {
		attempts = append(attempts, TitleAttempt{Source: models.TitleSourceTitleTag, Selector: "title", Value: titleTag, Selected: true})
		return titleTag, models.TitleSourceTitleTag, attempts
	}
	attempts = append(attempts, TitleAttempt{Source: models.TitleSourceTitleTag, Selector: "title", Value: ""})

	h1 := strings.TrimSpace(doc.Find("h1").First().Text())
	if h1 != "" {
		attempts = append(attempts, TitleAttempt{Source: models.TitleSourceH1, Selector: "h1", Value: h1, Selected: true})
		return h1, models.TitleSourceH1, attempts
	}
	attempts = append(attempts, TitleAttempt{Source: models.TitleSourceH1, Selector: "h1", Value: ""})

	return "", models.TitleSourceUnknown, attempts
}

// selectContentContainer returns the first container whose text exceeds
// minContentChars, falling back to body at confidence 0.4.
func (e *Extractor) selectContentContainer(doc *goquery.Document) (string, *goquery.Selection, float64) {
	for _, sel := range contentContainerSelectors {
		node := doc.Find(sel).First()
		if node.Length() == 0 {
			continue
		}
		if len(strings.TrimSpace(node.Text())) > minContentChars {
			return sel, node, 0.9
		}
	}
	return "body", doc.Find("body"), 0.4
}

func cleanText(s string) string {
	fields := strings.Fields(s)
	return strings.Join(fields, " ")
}

// extractLinks collects anchors under the document, excluding empty,
// fragment-only (#...) and javascript: hrefs, resolving relative URLs
// against finalURL.
func (e *Extractor) extractLinks(doc *goquery.Document, finalURL string) []models.Link {
	base, _ := url.Parse(finalURL)

	var links []models.Link
	doc.Find("a[href]").Each(func(i int, s *goquery.Selection) {
		href, _ := s.Attr("href")
		href = strings.TrimSpace(href)
		if href == "" || strings.HasPrefix(href, "#") || strings.HasPrefix(strings.ToLower(href), "javascript:") {
			return
		}

		resolved := href
		if base != nil {
			if u, err := base.Parse(href); err == nil {
				resolved = u.String()
			}
		}

		context := strings.TrimSpace(s.Parent().Text())
		if len(context) > 200 {
			context = context[:200]
		}

		links = append(links, models.Link{
			Href:    resolved,
			Text:    strings.TrimSpace(s.Text()),
			Context: context,
		})
	})
	return links
}
