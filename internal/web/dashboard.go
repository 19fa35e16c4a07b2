package web

import (
	_ "embed"
	"html/template"
	"net/http"
)

//go:embed dashboard.html
var dashboardHTML string

var dashboardTemplate = template.Must(template.New("dashboard").Parse(dashboardHTML))

// Dashboard serves the operator page that follows the live event feed
type Dashboard struct {
	wsPath string
}

// NewDashboard creates a dashboard that connects to the event feed at wsPath
func NewDashboard(wsPath string) *Dashboard {
	return &Dashboard{wsPath: wsPath}
}

// ServeHTTP renders the dashboard HTML
func (d *Dashboard) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-cache, no-store, must-revalidate")
	w.Header().Set("Pragma", "no-cache")
	w.Header().Set("Expires", "0")

	if err := dashboardTemplate.Execute(w, struct{ WSPath string }{d.wsPath}); err != nil {
		http.Error(w, "failed to render dashboard", http.StatusInternalServerError)
	}
}
