package scraper

import (
	"net/http"
	"time"

	"github.com/JakeFAU/devops-job-digest/internal/sites"
)

// Posting is one extracted listing.
type Posting struct {
	Company string `json:"company"`
	Title   string `json:"title"`
	Link    string `json:"link"`
}

// FetchRequest describes a single listing page fetch.
type FetchRequest struct {
	Site    string
	URL     string
	Headers http.Header
	Timeout time.Duration
}

// Page is a successfully fetched listing page.
type Page struct {
	URL        string
	StatusCode int
	Headers    http.Header
	Body       []byte
	Attempts   int
	Duration   time.Duration
}

// SiteReport summarizes one site's contribution to a run.
type SiteReport struct {
	Site     sites.Site
	Postings int
	Attempts int
	Err      error
}

// Failed reports whether the site contributed nothing because its fetch failed.
func (r SiteReport) Failed() bool {
	return r.Err != nil
}

// Result is the aggregate of a run: all postings in registry order plus per-site reports.
type Result struct {
	Postings []Posting
	Sites    []SiteReport
}

// FailedSites counts sites whose fetch failed.
func (r Result) FailedSites() int {
	n := 0
	for _, s := range r.Sites {
		if s.Failed() {
			n++
		}
	}
	return n
}
