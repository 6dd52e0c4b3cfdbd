package transport

import (
	"html/template"
	"net/http"
	"sort"
	"strings"

	"mcp-fleet/internal/credentials"
)

type landingTool struct {
	Name        string
	Description string
}

type landingData struct {
	Title     string
	Vendor    string
	Version   string
	BaseURL   string
	SSE       bool
	Streaming bool
	Gated     bool
	Tools     []landingTool
	Headers   []string
}

var landingTemplate = template.Must(template.New("landing").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<link rel="icon" type="image/svg+xml" href="/favicon.svg">
<title>{{.Title}} MCP</title>
<style>
*,*::before,*::after{box-sizing:border-box;margin:0;padding:0}
:root{--blue:#1A7CF9;--bg:#FFFFFF;--text:#1C1C1E;--text-secondary:#8E8E93;--divider:#E5E5EA;--code-bg:#F2F2F7;--radius:12px}
@media(prefers-color-scheme:dark){:root{--bg:#1C1C1E;--text:#F2F2F7;--divider:#3A3A3C;--code-bg:#3A3A3C}}
body{font-family:-apple-system,BlinkMacSystemFont,"Segoe UI",Roboto,Helvetica,Arial,sans-serif;color:var(--text);background:var(--bg);line-height:1.6}
.container{max-width:960px;margin:0 auto;padding:0 24px}
header{border-bottom:1px solid var(--divider);padding:20px 0}
h1{font-size:20px;font-weight:700}
h2{font-size:28px;margin:40px 0 12px}
h3{font-size:18px;margin:28px 0 8px}
p,li{color:var(--text-secondary)}
code{background:var(--code-bg);border-radius:6px;padding:2px 6px;font-size:14px}
table{width:100%;border-collapse:collapse;margin-top:8px}
td{border-top:1px solid var(--divider);padding:8px 4px;vertical-align:top}
td:first-child{white-space:nowrap;color:var(--blue);font-family:ui-monospace,Menlo,monospace;font-size:14px}
</style>
</head>
<body>
<header><div class="container"><h1>{{.Title}} MCP</h1></div></header>
<main class="container">
<h2>Connect your AI to <span style="color:var(--blue)">{{.Title}}</span></h2>
<p>Server <code>{{.Vendor}}</code> version <code>{{.Version}}</code> exposes {{len .Tools}} tools over the Model Context Protocol.</p>

<h3>Endpoints</h3>
<ul>
{{- if .Streaming}}
<li>Streamable HTTP: <code>{{.BaseURL}}/mcp</code></li>
{{- end}}
{{- if .SSE}}
<li>Server-Sent Events: <code>{{.BaseURL}}/sse</code> (messages to <code>/messages/</code>)</li>
{{- end}}
<li>Health: <code>{{.BaseURL}}/healthz</code></li>
</ul>

<h3>Credentials</h3>
<p>Send vendor credentials with every request:</p>
<ul>
{{- range .Headers}}
<li><code>{{.}}</code></li>
{{- end}}
{{- if .Gated}}
<li><code>Authorization: Bearer &lt;jwt&gt;</code> issued for this server</li>
{{- end}}
</ul>

<h3>Tools</h3>
<table>
{{- range .Tools}}
<tr><td>{{.Name}}</td><td>{{.Description}}</td></tr>
{{- end}}
</table>
</main>
</body>
</html>
`))

func (s *Server) handleLanding(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	tools := make([]landingTool, 0, len(s.vendor.Tools()))
	for _, t := range s.vendor.Tools() {
		desc := t.Tool.Description
		if i := strings.Index(desc, "\n"); i > 0 {
			desc = desc[:i]
		}
		tools = append(tools, landingTool{Name: t.Tool.Name, Description: desc})
	}
	sort.Slice(tools, func(i, j int) bool { return tools[i].Name < tools[j].Name })

	data := landingData{
		Title:     s.title,
		Vendor:    s.vendor.Name(),
		Version:   s.version,
		BaseURL:   baseURL(r),
		SSE:       s.cfg.Server.SSEEnabled(),
		Streaming: s.cfg.Server.StreamableEnabled(),
		Gated:     s.gated,
		Tools:     tools,
		Headers: []string{
			credentials.TokenHeader + ": <token>",
			credentials.DataHeader + ": <base64 JSON object>",
		},
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := landingTemplate.Execute(w, data); err != nil {
		s.logger.Warn("render landing page", "error", err)
	}
}

// faviconSVG is a plug with a spark, in the landing page blue.
const faviconSVG = `<svg xmlns="http://www.w3.org/2000/svg" viewBox="0 0 64 64" width="64" height="64" fill="none">
  <rect x="8" y="8" width="48" height="48" rx="12" fill="#1A7CF9"/>
  <polyline points="34,16 24,34 32,34 28,48 40,28 32,28 36,16" fill="#fff"/>
</svg>`

func handleFavicon(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Cache-Control", "public, max-age=86400")
	w.Header().Set("Content-Type", "image/svg+xml")
	w.Write([]byte(faviconSVG))
}
