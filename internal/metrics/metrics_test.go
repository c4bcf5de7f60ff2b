package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// counterValue reads one labelled counter out of reg. It returns -1 when the
// series does not exist.
func counterValue(t *testing.T, reg *prometheus.Registry, name, label, value string) float64 {
	t.Helper()
	families, err := reg.Gather()
	require.NoError(t, err)

	for _, mf := range families {
		if mf.GetName() != name {
			continue
		}
		for _, m := range mf.GetMetric() {
			for _, lp := range m.GetLabel() {
				if lp.GetName() == label && lp.GetValue() == value {
					return m.GetCounter().GetValue()
				}
			}
		}
	}
	return -1
}

func TestCollector_Outcomes(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordBorrow(ResultOK)
	c.RecordBorrow(ResultOK)
	c.RecordBorrow(ResultRejected)
	c.RecordReturn(ResultError)
	c.RecordLogin(ResultRejected)

	assert.Equal(t, 2.0, counterValue(t, reg, "elibrary_borrow_total", "result", ResultOK))
	assert.Equal(t, 1.0, counterValue(t, reg, "elibrary_borrow_total", "result", ResultRejected))
	assert.Equal(t, 1.0, counterValue(t, reg, "elibrary_return_total", "result", ResultError))
	assert.Equal(t, 1.0, counterValue(t, reg, "elibrary_login_total", "result", ResultRejected))
	assert.Equal(t, -1.0, counterValue(t, reg, "elibrary_login_total", "result", ResultOK))
}

func TestCollector_HTTPStatus(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordHTTPStatus(http.StatusOK)
	c.RecordHTTPStatus(http.StatusOK)
	c.RecordHTTPStatus(http.StatusNotFound)

	assert.Equal(t, 2.0, counterValue(t, reg, "elibrary_http_responses_total", "status", "200"))
	assert.Equal(t, 1.0, counterValue(t, reg, "elibrary_http_responses_total", "status", "404"))
}

func TestNewCollector_DoubleRegisterPanics(t *testing.T) {
	reg := prometheus.NewRegistry()
	NewCollector(reg)
	assert.Panics(t, func() { NewCollector(reg) })
}

func TestHandler_ServesTextFormat(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)
	c.RecordBorrow(ResultOK)

	rec := httptest.NewRecorder()
	Handler(reg).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `elibrary_borrow_total{result="ok"} 1`)
}

func TestNop(t *testing.T) {
	var r Recorder = Nop{}
	assert.NotPanics(t, func() {
		r.RecordBorrow(ResultOK)
		r.RecordReturn(ResultOK)
		r.RecordLogin(ResultOK)
		r.RecordHTTPStatus(500)
	})
}
