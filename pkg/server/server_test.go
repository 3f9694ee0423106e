package server

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"sigs.k8s.io/yaml"

	"github.com/leptonai/portbounce/pkg/portbounce"
	"github.com/leptonai/portbounce/pkg/portbounce/metrics"
)

func newTestTracker() *portbounce.Tracker {
	tr := portbounce.NewTracker("run-42", portbounce.NewFailureLedger())
	tr.SetPlan(10)
	tr.SetPhase(portbounce.PhaseBounce)
	tr.StartStep(portbounce.Step{Target: portbounce.BounceTarget{"12"}, DwellKind: portbounce.DwellShort})
	tr.SetState(portbounce.StateDwelling)
	tr.Ledger().Record("12", "port 12 failed to reach state Disabled")
	return tr
}

func newTestRouter(t *testing.T) *gin.Engine {
	gin.SetMode(gin.TestMode)
	reg := prometheus.NewRegistry()
	require.NoError(t, metrics.Register(reg))
	return newRouter(newTestTracker(), reg)
}

func TestHealthz(t *testing.T) {
	router := newTestRouter(t)

	for _, tt := range []struct {
		name        string
		contentType string
		decode      func([]byte, any) error
	}{
		{name: "json", decode: json.Unmarshal},
		{name: "yaml", contentType: "application/yaml", decode: func(b []byte, v any) error { return yaml.Unmarshal(b, v) }},
	} {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, URLPathHealthz, nil)
			if tt.contentType != "" {
				req.Header.Set("Content-Type", tt.contentType)
			}
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)

			assert.Equal(t, http.StatusOK, w.Code)
			assert.NotEmpty(t, w.Header().Get("X-Request-Id"))

			var h Healthz
			require.NoError(t, tt.decode(w.Body.Bytes(), &h))
			assert.Equal(t, "ok", h.Status)
			assert.NotEmpty(t, h.Version)
		})
	}
}

func TestStatus(t *testing.T) {
	router := newTestRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/v1"+URLPathStatus, nil)
	req.Header.Set("json-indent", "true")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	var st portbounce.Status
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &st))
	assert.Equal(t, "run-42", st.RunID)
	assert.Equal(t, portbounce.PhaseBounce, st.Phase)
	assert.Equal(t, 10, st.StepsTotal)
	assert.Equal(t, "Dwelling", st.State)
	require.NotNil(t, st.CurrentStep)
	assert.Equal(t, portbounce.BounceTarget{"12"}, st.CurrentStep.Target)
	assert.Equal(t, []string{"port 12 failed to reach state Disabled"}, st.Failures["12"])
}

func TestStatusGzip(t *testing.T) {
	router := newTestRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/v1"+URLPathStatus, nil)
	req.Header.Set("Accept-Encoding", "gzip")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "gzip", w.Header().Get("Content-Encoding"))
}

func TestFailures(t *testing.T) {
	router := newTestRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/v1"+URLPathFailures, nil)
	req.Header.Set("Content-Type", "application/yaml")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	var f Failures
	require.NoError(t, yaml.Unmarshal(w.Body.Bytes(), &f))
	assert.Equal(t, "run-42", f.RunID)
	assert.Equal(t, map[string][]string{"12": {"port 12 failed to reach state Disabled"}}, f.Failures)
}

func TestMetrics(t *testing.T) {
	router := newTestRouter(t)
	metrics.IncSwitchCommandError("disable")

	req := httptest.NewRequest(http.MethodGet, URLPathMetrics, nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "portbounce_switch_command_errors_total")
}

func TestRecovery(t *testing.T) {
	router := newTestRouter(t)
	router.GET("/panic", func(c *gin.Context) {
		panic("test panic")
	})

	req := httptest.NewRequest(http.MethodGet, "/panic", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

func TestServer(t *testing.T) {
	gin.SetMode(gin.TestMode)
	s, err := New("127.0.0.1:0", newTestTracker(), prometheus.NewRegistry())
	require.NoError(t, err)
	defer s.Stop()

	resp, err := http.Get(fmt.Sprintf("http://%s%s", s.Addr(), URLPathHealthz))
	require.NoError(t, err)
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), `"status":"ok"`)
}

func TestServerListenError(t *testing.T) {
	s, err := New("127.0.0.1:0", newTestTracker(), prometheus.NewRegistry())
	require.NoError(t, err)
	defer s.Stop()

	_, err = New(s.Addr(), newTestTracker(), prometheus.NewRegistry())
	assert.Error(t, err)
}
