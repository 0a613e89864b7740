package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHandlerFunc_LabelsByRouteTemplate(t *testing.T) {
	gin.SetMode(gin.TestMode)
	reg := prometheus.NewRegistry()
	p := NewPrometheus(NewPrometheusOptions{Subsystem: "test", Registerer: reg, Gatherer: reg})

	r := gin.New()
	p.Use(r)
	r.GET("/churches/:id", func(c *gin.Context) { c.Status(http.StatusNoContent) })

	for _, id := range []string{"a", "b"} {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/churches/"+id, nil))
		require.Equal(t, http.StatusNoContent, w.Code)
	}

	got := testutil.ToFloat64(p.reqCnt.WithLabelValues("204", http.MethodGet, "/churches/:id", ""))
	assert.Equal(t, float64(2), got)
}

func TestDomainCollectors(t *testing.T) {
	before := testutil.ToFloat64(webhookEvents.WithLabelValues("STRIPE", "giving", OutcomeDuplicate))
	ObserveWebhook("STRIPE", "giving", OutcomeDuplicate)
	assert.Equal(t, before+1, testutil.ToFloat64(webhookEvents.WithLabelValues("STRIPE", "giving", OutcomeDuplicate)))

	ObserveJob("dunning", 2, 1, 0)
	assert.GreaterOrEqual(t, testutil.ToFloat64(jobItems.WithLabelValues("dunning", "changed")), float64(2))
}
