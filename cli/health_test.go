package cli

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chattigo/autobot/cli/metrics"
)

func TestHealthHandler(t *testing.T) {
	collector := metrics.NewCollector()
	collector.ObserveWizard("start")
	srv := httptest.NewServer(newHealthHandler(collector))
	defer srv.Close()

	tests := []struct {
		path       string
		wantStatus int
		wantBody   string
	}{
		{"/", http.StatusOK, "OK"},
		{"/metrics", http.StatusOK, `autobot_wizard_events_total{event="start"} 1`},
		{"/missing", http.StatusNotFound, "404 page not found"},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			resp, err := http.Get(srv.URL + tt.path)
			require.NoError(t, err)
			defer resp.Body.Close()
			body, err := io.ReadAll(resp.Body)
			require.NoError(t, err)
			assert.Equal(t, tt.wantStatus, resp.StatusCode)
			assert.Contains(t, string(body), tt.wantBody)
		})
	}
}
