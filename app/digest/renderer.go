package digest

import (
	"bytes"
	"fmt"
	"html/template"
	"time"
)

type Group struct {
	Label string
	Items []GroupItem
}

type GroupItem struct {
	Title       string
	URL         string
	Summary     string
	PublishedAt *time.Time
}

// Renderer produces the HTML body of a digest email.
type Renderer struct {
	tmpl *template.Template
}

const digestTemplate = `<!DOCTYPE html>
<html>
<body style="font-family: sans-serif; max-width: 640px; margin: 0 auto;">
  <h1>{{.Title}}</h1>
  {{range .Groups}}
  <h2>{{.Label}}</h2>
  <ul>
    {{range .Items}}
    <li>
      <a href="{{.URL}}">{{.Title}}</a>
      {{if .PublishedAt}}<em>({{.PublishedAt.Format "2 Jan 2006 15:04"}})</em>{{end}}
      {{if .Summary}}<p>{{.Summary}}</p>{{end}}
    </li>
    {{end}}
  </ul>
  {{end}}
</body>
</html>
`

func NewRenderer() *Renderer {
	return &Renderer{
		tmpl: template.Must(template.New("digest").Parse(digestTemplate)),
	}
}

func (r *Renderer) Run(title string, groups []Group) (string, error) {
	var buf bytes.Buffer
	err := r.tmpl.Execute(&buf, struct {
		Title  string
		Groups []Group
	}{Title: title, Groups: groups})
	if err != nil {
		return "", fmt.Errorf("failed to execute digest template: %w", err)
	}
	return buf.String(), nil
}
