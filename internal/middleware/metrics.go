package middleware

import (
	"net/http"
	"strconv"
	"time"

	"github.com/VictoriaMetrics/metrics"
	"github.com/gin-gonic/gin"
)

// MetricsMiddleware records request counters and timing histograms and
// serves the Prometheus exposition.
type MetricsMiddleware struct {
	requestCounter     *metrics.Counter
	responseTimeHist   *metrics.Histogram
	responseSizeHist   *metrics.Histogram
	statusCodeCounters map[int]*metrics.Counter
}

func NewMetricsMiddleware() *MetricsMiddleware {
	m := &MetricsMiddleware{
		requestCounter:     metrics.NewCounter("http_requests_total"),
		responseTimeHist:   metrics.NewHistogram("http_response_time_seconds"),
		responseSizeHist:   metrics.NewHistogram("http_response_size_bytes"),
		statusCodeCounters: make(map[int]*metrics.Counter),
	}

	for _, code := range []int{200, 400, 404, 500, 502} {
		m.statusCodeCounters[code] = metrics.NewCounter(
			"http_response_status_total{code=\"" + strconv.Itoa(code) + "\"}",
		)
	}

	return m
}

// WithMetrics instruments each request.
func (m *MetricsMiddleware) WithMetrics() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		m.requestCounter.Inc()

		c.Next()

		m.responseTimeHist.Update(time.Since(start).Seconds())
		if counter, exists := m.statusCodeCounters[c.Writer.Status()]; exists {
			counter.Inc()
		}
		if size := c.Writer.Size(); size > 0 {
			m.responseSizeHist.Update(float64(size))
		}
	}
}

// Exposition serves the accumulated metrics in Prometheus text format.
func (m *MetricsMiddleware) Exposition(c *gin.Context) {
	c.Status(http.StatusOK)
	metrics.WritePrometheus(c.Writer, true)
}
