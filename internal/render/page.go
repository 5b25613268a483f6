// SPDX-License-Identifier: MIT

package render

import (
	"bytes"
	"fmt"
	"html/template"
)

// ShellData feeds the HTML shell wrapped around every rendered document.
type ShellData struct {
	SiteTitle string
	PageTitle string
	Body      template.HTML
}

// The shell deliberately ships no scripts so the default CSP needs no
// script-src exceptions.
var shellTmpl = template.Must(template.New("shell").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>{{if .PageTitle}}{{.PageTitle}} - {{end}}{{.SiteTitle}}</title>
<link rel="stylesheet" href="/static/site.css">
</head>
<body>
<header><nav><a href="/">{{.SiteTitle}}</a> &middot; <a href="/terms">Terms</a> &middot; <a href="/privacy">Privacy</a></nav></header>
<main>
{{.Body}}
</main>
</body>
</html>
`))

// Shell wraps rendered body HTML in the portal page shell.
func Shell(data ShellData) ([]byte, error) {
	var buf bytes.Buffer
	if err := shellTmpl.Execute(&buf, data); err != nil {
		return nil, fmt.Errorf("execute page shell: %w", err)
	}
	return buf.Bytes(), nil
}
