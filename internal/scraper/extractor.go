package scraper

import (
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"
	"golang.org/x/net/html"

	"github.com/JakeFAU/devops-job-digest/internal/logging"
)

const defaultMaxTitleLength = 150

// FilterRules decides which anchors are postings. Both a keyword and a
// remote tag must appear in the anchor text.
type FilterRules struct {
	Keywords       []string
	RemoteTags     []string
	MaxTitleLength int
}

// DefaultFilterRules returns the devops/SRE keywords and worldwide-remote tags.
func DefaultFilterRules() FilterRules {
	return FilterRules{
		Keywords:       []string{"devops", "sre", "infrastructure", "site reliability"},
		RemoteTags:     []string{"work from anywhere", "worldwide remote"},
		MaxTitleLength: defaultMaxTitleLength,
	}
}

// Extractor turns listing-page HTML into postings.
type Extractor struct {
	keywords   []string
	remoteTags []string
	maxTitle   int
	logger     *zap.Logger
}

// NewExtractor builds an Extractor. Phrases are matched case-insensitively.
func NewExtractor(rules FilterRules, logger *zap.Logger) *Extractor {
	maxTitle := rules.MaxTitleLength
	if maxTitle <= 0 {
		maxTitle = defaultMaxTitleLength
	}
	return &Extractor{
		keywords:   lowerAll(rules.Keywords),
		remoteTags: lowerAll(rules.RemoteTags),
		maxTitle:   maxTitle,
		logger:     logging.Component(logger, "extractor"),
	}
}

// Extract returns the matching anchors of htmlBody in document order. Parsing
// is best-effort: malformed markup or a bad base URL yields no postings.
func (e *Extractor) Extract(siteName, baseURL, htmlBody string) []Posting {
	base, err := url.Parse(baseURL)
	if err != nil {
		e.logger.Warn("invalid base url", zap.String("site", siteName), zap.String("url", baseURL), zap.Error(err))
		return nil
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(htmlBody))
	if err != nil {
		e.logger.Warn("parse listing page", zap.String("site", siteName), zap.Error(err))
		return nil
	}

	var postings []Posting
	doc.Find("a[href]").Each(func(_ int, s *goquery.Selection) {
		href, _ := s.Attr("href")
		ref, err := url.Parse(strings.TrimSpace(href))
		if err != nil {
			return
		}
		text := visibleText(s.Nodes[0])
		if !e.Matches(text) {
			return
		}
		postings = append(postings, Posting{
			Company: siteName,
			Title:   truncateRunes(text, e.maxTitle),
			Link:    base.ResolveReference(ref).String(),
		})
	})

	e.logger.Info("extracted postings", zap.String("site", siteName), zap.Int("postings", len(postings)))
	return postings
}

// Matches reports whether text carries at least one keyword and one remote tag.
func (e *Extractor) Matches(text string) bool {
	lower := strings.ToLower(text)
	return containsAny(lower, e.keywords) && containsAny(lower, e.remoteTags)
}

func visibleText(n *html.Node) string {
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

func truncateRunes(s string, limit int) string {
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return strings.TrimSpace(string(runes[:limit]))
}

func containsAny(s string, phrases []string) bool {
	for _, p := range phrases {
		if p != "" && strings.Contains(s, p) {
			return true
		}
	}
	return false
}

func lowerAll(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s = strings.ToLower(strings.TrimSpace(s)); s != "" {
			out = append(out, s)
		}
	}
	return out
}
