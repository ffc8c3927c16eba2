// Package scraper fetches job-board listing pages and extracts matching postings.
//
// A run walks the site registry through three stages. RetryingFetcher performs
// the GET with bounded retries and classified failures. Extractor filters
// anchors by keyword and remote tag. Aggregator drives both across every site
// and contains each site's failure so the rest of the run proceeds.
package scraper
