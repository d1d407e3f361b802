package monitor

import (
	"crypto/subtle"
	"net/http"
	"os"

	"scholarship-aid-api/config"
	"scholarship-aid-api/services"

	"github.com/gin-gonic/gin"
)

// maxLogBytes caps how much of the log file /logs returns.
const maxLogBytes = 256 * 1024

func tokenAllowed(c *gin.Context) bool {
	expected := config.Current().LogsToken
	if expected == "" {
		return false
	}
	given := c.Query("token")
	if given == "" {
		given = c.GetHeader("X-Logs-Token")
	}
	return subtle.ConstantTimeCompare([]byte(given), []byte(expected)) == 1
}

func RegisterMonitorPage(router *gin.Engine) {
	router.GET("/monitor", func(c *gin.Context) {
		c.Data(http.StatusOK, "text/html; charset=utf-8", []byte(monitorPage))
	})
}

// RegisterLogsRoute serves the tail of the backend log file to holders of LOGS_TOKEN.
func RegisterLogsRoute(router *gin.Engine) {
	router.GET("/logs", func(c *gin.Context) {
		if !tokenAllowed(c) {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
			return
		}
		logData, err := os.ReadFile(config.LogFilePath())
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Unable to read log"})
			return
		}
		if len(logData) > maxLogBytes {
			logData = logData[len(logData)-maxLogBytes:]
		}
		c.Data(http.StatusOK, "text/plain; charset=utf-8", logData)
	})
}

// RegisterSummaryRoute exposes queue counts for the monitor page.
func RegisterSummaryRoute(router *gin.Engine) {
	router.GET("/monitor/summary", func(c *gin.Context) {
		if !tokenAllowed(c) {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
			return
		}
		summary, err := services.Summarize(c.Request.Context(), config.DB)
		if err != nil {
			config.Logger().WithError(err).Error("monitor summary failed")
			c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "Unable to build summary"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"success": true, "data": summary})
	})
}

const monitorPage = `<!DOCTYPE html>
<html lang="en">
<head>
  <meta charset="UTF-8" />
  <meta name="viewport" content="width=device-width, initial-scale=1.0" />
  <title>Aid Pipeline Monitor</title>
  <style>
    body { background: #111827; color: #e5e7eb; font-family: -apple-system, 'Segoe UI', Roboto, sans-serif; padding: 20px; }
    .container { max-width: 1200px; margin: 0 auto; }
    h1 { font-size: 1.8rem; margin-bottom: 1rem; color: #a5b4fc; }
    .card { background: rgba(255,255,255,0.05); border: 1px solid rgba(255,255,255,0.1); border-radius: 12px; padding: 1rem 1.5rem; margin-bottom: 1.5rem; }
    .grid { display: grid; grid-template-columns: repeat(auto-fill, minmax(220px, 1fr)); gap: 0.75rem; }
    .metric { background: rgba(0,0,0,0.25); border-radius: 8px; padding: 0.75rem; }
    .metric .label { font-size: 0.8rem; color: #9ca3af; }
    .metric .value { font-size: 1.4rem; font-weight: 600; }
    #logs { background: rgba(0,0,0,0.3); padding: 1rem; border-radius: 8px; max-height: 480px; overflow-y: auto; white-space: pre-wrap; font-family: Consolas, monospace; font-size: 0.8rem; }
    button { background: #6366f1; color: white; border: none; padding: 0.4rem 1rem; border-radius: 6px; cursor: pointer; }
  </style>
</head>
<body>
  <div class="container">
    <h1>Aid Pipeline Monitor</h1>
    <div class="card" id="status">Status: checking...</div>
    <div class="card"><div class="grid" id="summary"></div></div>
    <div class="card">
      <button onclick="toggleLive()" id="toggleBtn">Pause Live Logs</button>
      <pre id="logs">Loading logs...</pre>
    </div>
  </div>

  <script>
    const token = new URLSearchParams(window.location.search).get('token') || '';
    let liveLogs = true;

    function metric(label, value) {
      return '<div class="metric"><div class="label">' + label + '</div><div class="value">' + value + '</div></div>';
    }

    function fetchStatus() {
      fetch('/api/v1/health')
        .then(res => res.json())
        .then(data => { document.getElementById('status').textContent = 'Status: ' + (data.status === 'ok' ? 'online' : 'degraded'); })
        .catch(() => { document.getElementById('status').textContent = 'Status: offline'; });
    }

    function fetchSummary() {
      fetch('/monitor/summary?token=' + encodeURIComponent(token))
        .then(res => res.json())
        .then(body => {
          if (!body.data) return;
          const d = body.data;
          let html = metric('Active interviews', d.active_interviews)
            + metric('Pending verifications', d.pending_verifications)
            + metric('Payable applications', d.payable_applications)
            + metric('Active locks', d.active_locks)
            + metric('Distribution batches', d.distribution_batches);
          for (const [status, count] of Object.entries(d.applications || {})) html += metric('Applications: ' + status, count);
          for (const [status, count] of Object.entries(d.payments || {})) html += metric('Payments: ' + status, count);
          document.getElementById('summary').innerHTML = html;
        });
    }

    function fetchLogs() {
      if (!liveLogs) return;
      fetch('/logs?token=' + encodeURIComponent(token))
        .then(res => res.text())
        .then(data => {
          const el = document.getElementById('logs');
          el.textContent = data;
          el.scrollTop = el.scrollHeight;
        });
    }

    function toggleLive() {
      liveLogs = !liveLogs;
      document.getElementById('toggleBtn').textContent = liveLogs ? 'Pause Live Logs' : 'Resume Live Logs';
    }

    fetchStatus();
    fetchSummary();
    fetchLogs();
    setInterval(fetchStatus, 5000);
    setInterval(fetchSummary, 10000);
    setInterval(fetchLogs, 5000);
  </script>
</body>
</html>`
