package mcp

import (
	"html/template"
	"net/http"
)

var landingTemplate = template.Must(template.New("landing").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>docchat</title>
<style>
  *, *::before, *::after { box-sizing: border-box; margin: 0; padding: 0; }
  body { font-family: -apple-system, BlinkMacSystemFont, "Segoe UI", Roboto, Helvetica, Arial, sans-serif; background: #0f172a; color: #e2e8f0; min-height: 100vh; display: flex; align-items: center; justify-content: center; }
  .card { max-width: 600px; width: 90%; background: #1e293b; border-radius: 12px; padding: 2.5rem; box-shadow: 0 25px 50px rgba(0,0,0,0.4); }
  h1 { font-size: 1.75rem; margin-bottom: 0.5rem; color: #f8fafc; }
  .subtitle { color: #94a3b8; margin-bottom: 1.75rem; }
  .section { margin-bottom: 1.5rem; }
  .section-title { font-size: 0.75rem; text-transform: uppercase; letter-spacing: 0.1em; color: #64748b; margin-bottom: 0.5rem; }
  a { color: #38bdf8; text-decoration: none; }
  pre { background: #0f172a; border: 1px solid #334155; border-radius: 8px; padding: 1rem; overflow-x: auto; font-size: 0.85rem; line-height: 1.5; }
  code, .endpoint { font-family: "SF Mono", "Fira Code", Menlo, monospace; }
  .status { display: inline-block; width: 8px; height: 8px; border-radius: 50%; margin-right: 0.5rem; background: #eab308; }
  .status.ready { background: #22c55e; }
  .status.failed { background: #ef4444; }
  .endpoint { font-size: 0.9rem; color: #a5b4fc; }
</style>
</head>
<body>
<div class="card">
  <h1>docchat</h1>
  <p class="subtitle">Conversational question answering over {{if .Folder}}<code>{{.Folder}}</code>{{else}}a document folder{{end}} via the Model Context Protocol.</p>

  <div class="section">
    <div class="section-title">Session</div>
    <p><span class="status {{.Status}}{{if .Ready}} ready{{end}}"></span>{{.Status}} &middot; {{.Documents}} documents &middot; {{.Chunks}} chunks &middot; {{.Turns}} turns</p>
  </div>

  <div class="section">
    <div class="section-title">Add to an MCP client</div>
    <pre><code>claude mcp add docchat --transport http {{.Origin}}/mcp</code></pre>
  </div>

  <div class="section">
    <div class="section-title">Endpoints</div>
    <p><a href="/mcp" class="endpoint">/mcp</a> &middot; MCP Streamable HTTP</p>
    <p><a href="/health" class="endpoint">/health</a> &middot; Health check</p>
  </div>
</div>
</body>
</html>`))

type landingData struct {
	Origin    string
	Folder    string
	Status    string
	Ready     bool
	Documents int
	Chunks    int
	Turns     int
}

// NewLandingHandler returns an HTTP handler that serves the landing page at /.
func NewLandingHandler(sess Session) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/" {
			http.NotFound(w, r)
			return
		}

		scheme := "http"
		if r.TLS != nil {
			scheme = "https"
		}
		info := sess.Info()
		data := landingData{
			Origin:    scheme + "://" + r.Host,
			Folder:    info.Folder,
			Status:    string(info.Status),
			Ready:     info.Ready,
			Documents: info.Documents,
			Chunks:    info.Chunks,
			Turns:     info.Turns,
		}

		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		landingTemplate.Execute(w, data)
	}
}
