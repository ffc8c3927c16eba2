// Package digest renders the aggregated postings into the emailed HTML document.
package digest

import (
	"bytes"
	"fmt"
	"html/template"
	"strings"
	"time"

	"github.com/JakeFAU/devops-job-digest/internal/scraper"
)

// DefaultSubjectPrefix starts every digest subject line.
const DefaultSubjectPrefix = "Daily Worldwide Remote DevOps Job Digest"

// Keywords and Skills fill the matching columns of every row. They are fixed
// lists and do not depend on the posting's title.
var (
	Keywords = []string{"remote", "worldwide", "devops", "infrastructure", "automation"}
	Skills   = []string{"AWS", "Terraform", "Kubernetes", "Docker", "CI/CD"}
)

// Document is one run's digest before rendering.
type Document struct {
	GeneratedAt time.Time
	Postings    []scraper.Posting
}

type row struct {
	Company  string
	Title    string
	Link     string
	Keywords []string
	Skills   []string
}

const digestTemplate = `<h2>Worldwide Remote DevOps Jobs - {{.Date}}</h2>
{{- if .Rows}}
<table border="1" cellspacing="0" cellpadding="4">
<tr><th>Company</th><th>Job Title / Link</th><th>Keywords</th><th>Skills</th></tr>
{{- range .Rows}}
<tr><td>{{.Company}}</td><td><a href="{{.Link}}">{{.Title}}</a></td><td>{{join .Keywords}}</td><td>{{join .Skills}}</td></tr>
{{- end}}
</table>
{{- else}}
<p>No DevOps jobs found today.</p>
<p><em>Many job boards block automated access, so some sites may have returned nothing. Consider checking them manually.</em></p>
{{- end}}
`

// Renderer formats documents as HTML fragments with contextual escaping.
type Renderer struct {
	tmpl *template.Template
}

// NewRenderer parses the digest template.
func NewRenderer() (*Renderer, error) {
	tmpl, err := template.New("digest").Funcs(template.FuncMap{
		"join": func(items []string) string { return strings.Join(items, ", ") },
	}).Parse(digestTemplate)
	if err != nil {
		return nil, fmt.Errorf("parse digest template: %w", err)
	}
	return &Renderer{tmpl: tmpl}, nil
}

// Render produces the digest for postings dated by now. An empty slice yields
// the "no jobs found" notice instead of a table.
func (r *Renderer) Render(postings []scraper.Posting, now time.Time) (string, error) {
	return r.RenderDocument(Document{GeneratedAt: now, Postings: postings})
}

// RenderDocument renders a prepared Document.
func (r *Renderer) RenderDocument(doc Document) (string, error) {
	rows := make([]row, 0, len(doc.Postings))
	for _, p := range doc.Postings {
		rows = append(rows, row{
			Company:  p.Company,
			Title:    p.Title,
			Link:     p.Link,
			Keywords: Keywords,
			Skills:   Skills,
		})
	}

	var buf bytes.Buffer
	err := r.tmpl.Execute(&buf, struct {
		Date string
		Rows []row
	}{
		Date: doc.GeneratedAt.Format(time.DateOnly),
		Rows: rows,
	})
	if err != nil {
		return "", fmt.Errorf("render digest: %w", err)
	}
	return buf.String(), nil
}

// Subject builds the subject line for a digest carrying n postings.
func Subject(prefix string, n int) string {
	if prefix == "" {
		prefix = DefaultSubjectPrefix
	}
	if n == 0 {
		return prefix + " - No jobs found today"
	}
	return fmt.Sprintf("%s - %d jobs found", prefix, n)
}
