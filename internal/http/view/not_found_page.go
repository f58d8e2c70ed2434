package view

import (
	"bytes"
	"html/template"
)

// NotFoundPageData provides the dynamic fields for the not-found template.
type NotFoundPageData struct {
	Title   string
	Message string
	HomeURL string
}

var notFoundPageTmpl = template.Must(template.New("not_found_page").Parse(`
<!DOCTYPE html>
<html lang="en">
<head>
	<meta charset="utf-8" />
	<meta name="viewport" content="width=device-width, initial-scale=1" />
	<title>{{if .Title}}{{.Title}}{{else}}Link not found{{end}}</title>
	<style>
		:root {
			--bg: #090a0f;
			--card: rgba(255, 255, 255, 0.05);
			--border: rgba(255, 255, 255, 0.15);
			--text: #e7ecff;
			--muted: #a1acc5;
			--accent: #38bdf8;
			font-family: "Inter", -apple-system, BlinkMacSystemFont, "Segoe UI", sans-serif;
		}
		* { box-sizing: border-box; }
		body {
			margin: 0;
			min-height: 100vh;
			display: flex;
			align-items: center;
			justify-content: center;
			background: var(--bg);
			color: var(--text);
		}
		.card {
			max-width: 420px;
			padding: 40px 36px;
			border: 1px solid var(--border);
			border-radius: 16px;
			background: var(--card);
			text-align: center;
		}
		h1 { margin: 0 0 8px; font-size: 28px; }
		p { margin: 0 0 24px; color: var(--muted); line-height: 1.5; }
		a {
			color: var(--accent);
			text-decoration: none;
			font-weight: 600;
		}
	</style>
</head>
<body>
	<div class="card">
		<h1>404</h1>
		<p>{{if .Message}}{{.Message}}{{else}}This QR code or short link does not exist. It may have been deleted by its owner.{{end}}</p>
		{{if .HomeURL}}<a href="{{.HomeURL}}">Go home</a>{{end}}
	</div>
</body>
</html>
`))

// RenderNotFoundPage renders the not-found page shown when a short id does
// not resolve.
func RenderNotFoundPage(data NotFoundPageData) (string, error) {
	var buf bytes.Buffer
	if err := notFoundPageTmpl.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}
