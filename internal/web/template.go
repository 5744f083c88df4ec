package web

import (
	"fmt"
	"html/template"
	"io"
	"log"
	"time"

	"github.com/sweeney/dcf77-receiver/internal/status"
)

var indexTmpl = template.Must(template.New("index").Funcs(template.FuncMap{
	"uptime": func(d time.Duration) string {
		d = d.Truncate(time.Second)
		days := int(d.Hours()) / 24
		h := int(d.Hours()) % 24
		m := int(d.Minutes()) % 60
		s := int(d.Seconds()) % 60
		switch {
		case days > 0:
			return fmt.Sprintf("%dd %dh %dm %ds", days, h, m, s)
		case h > 0:
			return fmt.Sprintf("%dh %dm %ds", h, m, s)
		case m > 0:
			return fmt.Sprintf("%dm %ds", m, s)
		}
		return fmt.Sprintf("%ds", s)
	},
	"broadcast": func(t time.Time) string {
		return t.Format("Mon 2006-01-02 15:04 MST")
	},
}).Parse(indexHTML))

const indexHTML = `<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<meta http-equiv="refresh" content="10">
<title>DCF77 Receiver</title>
<style>
body { font-family: monospace; max-width: 720px; margin: 2em auto; padding: 0 1em; }
h1 { font-size: 1.4em; }
table { border-collapse: collapse; width: 100%; margin: 1em 0; }
td, th { text-align: left; padding: 4px 8px; border-bottom: 1px solid #ddd; }
th { width: 40%; }
.ok { color: green; font-weight: bold; }
.bad { color: red; }
.pending { color: orange; }
.bits { font-size: 0.85em; word-break: break-all; }
</style>
</head>
<body>
<h1>DCF77 Receiver</h1>

<h2>Signal</h2>
<table>
<tr><th>Synced</th><td id="synced" class="{{if .Synced}}ok{{else}}pending{{end}}">{{if .Synced}}yes{{else}}no{{end}}</td></tr>
<tr><th>Second</th><td>{{.Second}}</td></tr>
{{with .LastMinute}}<tr><th>Broadcast time</th><td id="broadcast" class="{{if .Valid}}ok{{else}}bad{{end}}">{{if .Valid}}{{broadcast .Time}}{{else}}invalid{{end}}</td></tr>
<tr><th>Parity</th><td class="{{if .ParityOK}}ok{{else}}bad{{end}}">{{.Parity1}} {{.Parity2}} {{.Parity3}}</td></tr>
<tr><th>Length</th><td>{{.Length}}s</td></tr>
<tr><th>Bits</th><td class="bits">{{.Bits}}</td></tr>
{{if .Jumps}}<tr><th>Jumps</th><td class="bad">{{range $i, $j := .Jumps}}{{if $i}}, {{end}}{{$j}}{{end}}</td></tr>{{end}}{{else}}<tr><th>Broadcast time</th><td class="pending">waiting for first minute</td></tr>{{end}}
</table>

<h2>Decoder</h2>
<table>
<tr><th>Edges</th><td>{{.Decoder.Stats.Edges}}</td></tr>
<tr><th>Spikes</th><td>{{.Decoder.Stats.Spikes}}</td></tr>
<tr><th>Runaways</th><td>{{.Decoder.Stats.ActiveRunaways}} active, {{.Decoder.Stats.PassiveRunaways}} passive</td></tr>
<tr><th>Desyncs</th><td>{{.Decoder.Stats.Desyncs}}</td></tr>
<tr><th>Minutes</th><td>{{.Counts.Minutes}} ({{.Counts.ValidMinutes}} valid)</td></tr>
</table>

<h2>Connectivity</h2>
<table>
<tr><th>MQTT</th><td class="{{if .MQTTConnected}}ok{{else}}bad{{end}}">{{if .MQTTConnected}}connected{{else}}disconnected{{end}}</td></tr>
<tr><th>Broker</th><td>{{.Config.Broker}}</td></tr>
{{if .Network}}<tr><th>Network</th><td>{{.Network.Status}} ({{.Network.Type}}{{if .Network.SSID}}, {{.Network.SSID}}{{end}})</td></tr>
<tr><th>IP</th><td>{{.Network.IP}}</td></tr>{{end}}
</table>

<h2>System</h2>
<table>
<tr><th>Uptime</th><td>{{uptime .Uptime}}</td></tr>
<tr><th>Started</th><td>{{.StartTime.UTC.Format "2006-01-02T15:04:05Z"}}</td></tr>
<tr><th>Mode</th><td>{{.Config.Mode}}{{if .Config.Strict}} (strict){{end}}</td></tr>
<tr><th>Input</th><td>{{.Config.Chip}} line {{.Config.Pin}}{{if .Config.Invert}} inverted{{end}}</td></tr>
<tr><th>Spike limit</th><td>{{.Config.SpikeLimitUs}}us</td></tr>
<tr><th>Heartbeat</th><td>{{if eq .Config.HeartbeatMs 0}}disabled{{else}}{{.Config.HeartbeatMs}}ms{{end}}</td></tr>
<tr><th>HTTP</th><td>{{.Config.HTTPPort}}</td></tr>
</table>

<p><a href="/index.json">JSON</a> | <a href="/time">Time</a> | <a href="/metrics">Metrics</a></p>
</body>
</html>
`

func renderHTML(w io.Writer, snap status.Snapshot) {
	// Snapshot has Uptime() method but template needs a Duration field.
	data := struct {
		status.Snapshot
		Uptime time.Duration
	}{
		Snapshot: snap,
		Uptime:   snap.Uptime(),
	}
	if err := indexTmpl.Execute(w, data); err != nil {
		log.Printf("web: render index: %v", err)
	}
}
