package monitoring

import (
	"fmt"
	"html/template"
	"net/http"
	"sort"
	"time"

	"github.com/sirupsen/logrus"
)

var dashboardTmpl = template.Must(template.New("dashboard").Funcs(template.FuncMap{
	"mib": formatMiB,
}).Parse(dashboardHTML))

// Dashboard renders a self-refreshing HTML status page.
type Dashboard struct {
	monitor *Monitor
	logger  *logrus.Logger
}

type skipRow struct {
	Reason string
	Count  int64
}

type dashboardData struct {
	Health       Health
	Metrics      UploadMetrics
	Skips        []skipRow
	Notification string
	Timestamp    string
}

// NewDashboard creates a new monitoring dashboard.
func NewDashboard(monitor *Monitor, logger *logrus.Logger) *Dashboard {
	if logger == nil {
		logger = logrus.New()
	}
	return &Dashboard{
		monitor: monitor,
		logger:  logger,
	}
}

func (d *Dashboard) data() dashboardData {
	metrics := d.monitor.metrics.GetUploadMetrics()

	skips := make([]skipRow, 0, len(metrics.Skipped))
	for reason, n := range metrics.Skipped {
		skips = append(skips, skipRow{Reason: reason, Count: n})
	}
	sort.Slice(skips, func(i, j int) bool { return skips[i].Reason < skips[j].Reason })

	data := dashboardData{
		Health:    d.monitor.GetHealth(),
		Metrics:   metrics,
		Skips:     skips,
		Timestamp: time.Now().Format("2006-01-02 15:04:05"),
	}
	if d.monitor.notifications != nil {
		if msg, ok := d.monitor.notifications.Latest(); ok {
			data.Notification = msg.Text
		}
	}
	return data
}

// ServeHTTP serves the dashboard page.
func (d *Dashboard) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := dashboardTmpl.Execute(w, d.data()); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		d.logger.WithError(err).Error("Failed to render dashboard template")
	}
}

func formatMiB(b int64) string {
	return fmt.Sprintf("%.1f MiB", float64(b)/(1<<20))
}

const dashboardHTML = `<!DOCTYPE html>
<html lang="en">
<head>
    <meta charset="UTF-8">
    <meta http-equiv="refresh" content="5">
    <title>Glaceon Auto-Upload</title>
    <style>
        body { font-family: sans-serif; margin: 2em; color: #222; }
        table { border-collapse: collapse; margin-bottom: 1.5em; }
        td, th { padding: 4px 12px; border-bottom: 1px solid #ddd; text-align: left; }
        .state-running { color: #1a7f37; }
        .state-stopped { color: #999; }
    </style>
</head>
<body>
    <h1>📤 Glaceon Auto-Upload</h1>
    <p>Device: {{.Health.DeviceID}} &middot; {{.Timestamp}} &middot; up {{.Health.Uptime}}</p>
    {{if .Notification}}<p><strong>🔔 {{.Notification}}</strong></p>{{end}}

    <h2>Monitoring</h2>
    <table>
        <tr><th>State</th><td class="state-{{.Health.State}}">{{.Health.State}}</td></tr>
        <tr><th>Known files</th><td>{{.Health.LedgerSize}}</td></tr>
        <tr><th>In flight</th><td>{{.Health.InFlight}}</td></tr>
    </table>

    <h2>Folders</h2>
    <table>
        {{range .Health.Folders}}<tr><td>{{.}}</td></tr>{{else}}<tr><td>none</td></tr>{{end}}
    </table>

    <h2>Uploads</h2>
    <table>
        <tr><th>Candidates</th><td>{{.Metrics.Candidates}}</td></tr>
        <tr><th>Uploaded</th><td>{{.Metrics.UploadsSucceeded}}</td></tr>
        <tr><th>Failed</th><td>{{.Metrics.UploadsFailed}}</td></tr>
        <tr><th>Transferred</th><td>{{mib .Metrics.BytesUploaded}}</td></tr>
        <tr><th>Avg upload time</th><td>{{.Metrics.AvgUploadTime}} ms</td></tr>
        <tr><th>Last upload</th><td>{{.Metrics.LastUploadTime}}</td></tr>
    </table>

    <h2>Skipped</h2>
    <table>
        {{range .Skips}}<tr><th>{{.Reason}}</th><td>{{.Count}}</td></tr>{{else}}<tr><td>none</td></tr>{{end}}
    </table>
</body>
</html>
`
