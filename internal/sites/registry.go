// Package sites holds the registry of job boards scraped on every run.
package sites

import (
	"fmt"
	"net/url"
	"strings"
)

// Site names a job board and the listing page fetched for it.
type Site struct {
	Name string `mapstructure:"name" yaml:"name"`
	URL  string `mapstructure:"url" yaml:"url"`
}

var defaultRegistry = []Site{
	{Name: "FeedCoyote", URL: "https://feedcoyote.com/jobs?search=devops"},
	{Name: "JustRemote", URL: "https://justremote.co/remote-devops-jobs"},
	{Name: "Himalayas", URL: "https://himalayas.app/jobs?search=devops"},
	{Name: "Wellfound", URL: "https://wellfound.com/role/devops-engineer"},
	{Name: "WorkingNomads", URL: "https://www.workingnomads.com/jobs?category=devops"},
	{Name: "JobBoardSearch", URL: "https://jobboardsearch.com/?s=devops"},
	{Name: "Remotive", URL: "https://remotive.com/remote-jobs/devops"},
	{Name: "WeWorkRemotely", URL: "https://weworkremotely.com/remote-jobs/search?term=devops"},
	{Name: "RemoteOK", URL: "https://remoteok.com/remote-devops-jobs"},
	{Name: "FlexJobs", URL: "https://www.flexjobs.com/search?search=devops&location=remote"},
	{Name: "Remote.co", URL: "https://remote.co/remote-jobs/devops/"},
	{Name: "EuropeRemotely", URL: "https://europeremotely.com/jobs"},
	{Name: "Jobspresso", URL: "https://jobspresso.co/?s=devops"},
	{Name: "DynamiteJobs", URL: "https://dynamitejobs.com/jobs?search=devops"},
	{Name: "NoDesk", URL: "https://nodesk.co/remote-jobs/devops/"},
	{Name: "Outsourcely", URL: "https://www.outsourcely.com/remote-devops-jobs"},
	{Name: "Arc", URL: "https://arc.dev/remote-jobs/devops-engineer"},
	{Name: "Lemon", URL: "https://lemon.io/for-developers/"},
}

// Default returns a copy of the built-in registry in scrape order.
func Default() []Site {
	out := make([]Site, len(defaultRegistry))
	copy(out, defaultRegistry)
	return out
}

// Validate checks that every site has a name and an absolute http(s) URL.
func Validate(registry []Site) error {
	if len(registry) == 0 {
		return fmt.Errorf("site registry is empty")
	}
	for i, s := range registry {
		if strings.TrimSpace(s.Name) == "" {
			return fmt.Errorf("sites[%d].name is required", i)
		}
		u, err := url.Parse(s.URL)
		if err != nil {
			return fmt.Errorf("sites[%d].url %q: %w", i, s.URL, err)
		}
		if u.Scheme != "http" && u.Scheme != "https" {
			return fmt.Errorf("sites[%d].url %q must be http or https", i, s.URL)
		}
		if u.Host == "" {
			return fmt.Errorf("sites[%d].url %q has no host", i, s.URL)
		}
	}
	return nil
}
