package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestCounters(t *testing.T) {
	Register()
	Register()

	before := testutil.ToFloat64(tokenRefresh.WithLabelValues("success"))
	IncTokenRefresh("success")
	assert.Equal(t, before+1, testutil.ToFloat64(tokenRefresh.WithLabelValues("success")))

	before = testutil.ToFloat64(apiRequests.WithLabelValues("fetch_stores", "2xx"))
	ObserveRequest("fetch_stores", "2xx", 120*time.Millisecond)
	assert.Equal(t, before+1, testutil.ToFloat64(apiRequests.WithLabelValues("fetch_stores", "2xx")))
}
