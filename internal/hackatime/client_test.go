package hackatime

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestStatsRequestAndDecode(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/users/U123/stats" {
			t.Errorf("path = %s", r.URL.Path)
		}
		q := r.URL.Query()
		if q.Get("start_date") != "2026-08-01" || q.Get("end_date") != "2026-08-31" {
			t.Errorf("date params = %v", q)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer hk-test" {
			t.Errorf("auth = %q", got)
		}
		io.WriteString(w, `{"data": {
			"human_readable_total": "42 hrs 10 mins",
			"human_readable_daily_average": "1 hr 21 mins",
			"total_seconds": 151800,
			"projects": [{"name": "zoebot", "text": "20 hrs", "percent": 47.5}]
		}}`)
	}))
	defer srv.Close()

	c := NewClient(Config{BaseURL: srv.URL, APIKey: "hk-test", UserID: "U123"}, discardLogger())
	stats, err := c.Stats(context.Background(), "2026-08-01", "2026-08-31")
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if stats.HumanReadableTotal != "42 hrs 10 mins" {
		t.Errorf("total = %q", stats.HumanReadableTotal)
	}
	if len(stats.Projects) != 1 || stats.Projects[0].Name != "zoebot" {
		t.Errorf("projects = %+v", stats.Projects)
	}
}

func TestFormatStatsTopFiveOnly(t *testing.T) {
	s := &Stats{
		HumanReadableTotal:        "10 hrs",
		HumanReadableDailyAverage: "2 hrs",
		Projects: []Project{
			{Name: "a", Text: "5 hrs", Percent: 50},
			{Name: "b", Text: "2 hrs", Percent: 20},
			{Name: "c", Text: "1 hr", Percent: 10},
			{Name: "d", Text: "1 hr", Percent: 10},
			{Name: "e", Text: "30 mins", Percent: 5},
			{Name: "f", Text: "30 mins", Percent: 5},
		},
	}
	out := FormatStats(s)
	if !strings.Contains(out, "Total: 10 hrs") {
		t.Errorf("missing total: %s", out)
	}
	if !strings.Contains(out, "• a: 5 hrs (50.0%)") {
		t.Errorf("missing first project line: %s", out)
	}
	if strings.Contains(out, "• f:") {
		t.Errorf("sixth project should be dropped: %s", out)
	}
}

func TestFormatStatsNoProjects(t *testing.T) {
	out := FormatStats(&Stats{HumanReadableTotal: "0 secs"})
	if !strings.Contains(out, "No project data available") {
		t.Errorf("missing empty-projects note: %s", out)
	}
}
