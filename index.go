package main

import (
	"html/template"
	"log/slog"
	"net/http"
	"time"
)

var indexTmpl = template.Must(template.New("index").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width,initial-scale=1">
<title>Text Sync Relay</title>
<style>
*{margin:0;padding:0;box-sizing:border-box}
body{font-family:system-ui,-apple-system,'Segoe UI',Roboto,sans-serif;background:#191919;color:#e5e5e5;min-height:100vh;display:flex;align-items:center;justify-content:center}
.wrap{width:100%;max-width:480px;padding:24px}
h1{font-size:18px;font-weight:600;margin-bottom:16px}
.card{background:#242424;border:1px solid #333;border-radius:6px;padding:12px 16px;margin-bottom:16px}
.row{display:flex;justify-content:space-between;padding:6px 0;font-size:14px}
.label{color:#737373}
code{font-family:ui-monospace,Menlo,monospace;font-size:13px}
</style>
</head>
<body>
<div class="wrap">
<h1>Text Sync Relay</h1>
<div class="card">
<div class="row"><span class="label">Uptime</span><span>{{.Uptime}}</span></div>
<div class="row"><span class="label">Connections</span><span>{{.Connections}}</span></div>
<div class="row"><span class="label">Rooms</span><span>{{.Rooms}}</span></div>
<div class="row"><span class="label">Count debounce</span><span>{{.NotifyDelay}}</span></div>
</div>
<div class="card">
<div class="row"><span class="label">GET</span><code>/health</code></div>
<div class="row"><span class="label">GET</span><code>/rooms/{id}</code></div>
<div class="row"><span class="label">GET</span><code>/metrics</code></div>
<div class="row"><span class="label">WS</span><code>/ws</code></div>
</div>
<div class="card">
{{range .Events}}<div class="row"><code>{{.}}</code></div>{{end}}
</div>
</div>
</body>
</html>`))

type indexView struct {
	Uptime      string
	Connections int
	Rooms       int
	NotifyDelay time.Duration
	Events      []string
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	view := indexView{
		Uptime:      s.hub.Uptime().Round(time.Second).String(),
		Connections: s.hub.ConnCount(),
		Rooms:       s.hub.RoomCount(),
		NotifyDelay: s.cfg.NotifyDelay,
		Events: []string{
			EventJoinRoom, EventSend, EventLeaveRoom,
			EventReceive, EventRoomUsersCount, EventJoinedRoom, EventLeftRoom, EventError,
		},
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-cache")
	if err := indexTmpl.Execute(w, view); err != nil {
		slog.Warn("render index", "err", err)
	}
}
