package digest

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/devops-job-digest/internal/scraper"
)

var renderDate = time.Date(2026, 3, 14, 7, 0, 0, 0, time.UTC)

func newRenderer(t *testing.T) *Renderer {
	t.Helper()
	r, err := NewRenderer()
	require.NoError(t, err)
	return r
}

func TestRenderEmpty(t *testing.T) {
	t.Parallel()

	out, err := newRenderer(t).Render(nil, renderDate)
	require.NoError(t, err)

	assert.Contains(t, out, "No DevOps jobs found today.")
	assert.Contains(t, out, "block automated access")
	assert.Contains(t, out, "2026-03-14")
	assert.NotContains(t, out, "<table")
	assert.NotContains(t, out, "<tr>")
}

func TestRenderRowsCarryStaticColumns(t *testing.T) {
	t.Parallel()

	postings := []scraper.Posting{
		{Company: "Remotive", Title: "DevOps Engineer worldwide remote", Link: "https://remotive.test/1"},
		{Company: "NoDesk", Title: "Java Developer, work from anywhere", Link: "https://nodesk.test/2"},
	}
	out, err := newRenderer(t).Render(postings, renderDate)
	require.NoError(t, err)

	assert.Equal(t, 3, strings.Count(out, "<tr>"), "header plus two data rows")
	assert.Contains(t, out, "<th>Company</th><th>Job Title / Link</th><th>Keywords</th><th>Skills</th>")
	assert.Equal(t, 2, strings.Count(out, "<td>remote, worldwide, devops, infrastructure, automation</td>"))
	assert.Equal(t, 2, strings.Count(out, "<td>AWS, Terraform, Kubernetes, Docker, CI/CD</td>"))
	assert.Contains(t, out, `<a href="https://remotive.test/1">DevOps Engineer worldwide remote</a>`)
	assert.Less(t, strings.Index(out, "Remotive"), strings.Index(out, "NoDesk"), "input order preserved")
	assert.NotContains(t, out, "No DevOps jobs found")
}

func TestRenderEscapesScrapedText(t *testing.T) {
	t.Parallel()

	postings := []scraper.Posting{{
		Company: `Evil & Co <b>`,
		Title:   `<script>alert(1)</script> DevOps worldwide remote`,
		Link:    `javascript:alert(1)`,
	}}
	out, err := newRenderer(t).Render(postings, renderDate)
	require.NoError(t, err)

	assert.NotContains(t, out, "<script>")
	assert.Contains(t, out, "&lt;script&gt;")
	assert.Contains(t, out, "Evil &amp; Co &lt;b&gt;")
	assert.NotContains(t, out, `href="javascript:`)
}

func TestSubject(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "Daily Worldwide Remote DevOps Job Digest - No jobs found today", Subject("", 0))
	assert.Equal(t, "Daily Worldwide Remote DevOps Job Digest - 1 jobs found", Subject(DefaultSubjectPrefix, 1))
	assert.Equal(t, "Weekly - 12 jobs found", Subject("Weekly", 12))
}
