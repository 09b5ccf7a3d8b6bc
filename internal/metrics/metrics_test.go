package metrics

import (
	"testing"
	"time"

	"github.com/oremus-labs/docai-console/apiclient"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestRouteLabel(t *testing.T) {
	cases := map[string]string{
		"":                        "/",
		"/api/v1/documents":       "/api/v1/documents",
		"/api/v1/documents/42":    "/api/v1/documents/:id",
		"/api/v1/documents?limit": "/api/v1/documents",
		"/api/v1/conversations/0b8e5f5e-8d43-4c8e-9f3a-2f8c7f1e9a10/messages/stream": "/api/v1/conversations/:id/messages/stream",
	}
	for in, want := range cases {
		assert.Equal(t, want, RouteLabel(in), in)
	}
}

func TestClientObserverCountsOutcomes(t *testing.T) {
	obs := ClientObserver{}
	ok := clientRequestsTotal.WithLabelValues("GET", "/metrics-test", "ok")
	failed := clientRequestsTotal.WithLabelValues("GET", "/metrics-test", "http")
	before, beforeFailed := testutil.ToFloat64(ok), testutil.ToFloat64(failed)

	obs.ObserveRequest("GET", "/metrics-test", 200, "", time.Millisecond)
	obs.ObserveRequest("GET", "/metrics-test", 404, apiclient.KindHTTP, time.Millisecond)

	assert.Equal(t, before+1, testutil.ToFloat64(ok))
	assert.Equal(t, beforeFailed+1, testutil.ToFloat64(failed))
}

func TestClientObserverCountsStreamEvents(t *testing.T) {
	obs := ClientObserver{}
	events := clientStreamEvents.WithLabelValues("/stream-test")
	before := testutil.ToFloat64(events)

	obs.ObserveStream("/stream-test", 3, "", time.Second)

	assert.Equal(t, before+3, testutil.ToFloat64(events))
	assert.Equal(t, float64(1), testutil.ToFloat64(clientStreamsTotal.WithLabelValues("/stream-test", "ok")))
}

func TestStreamOpenedBalancesGauge(t *testing.T) {
	before := testutil.ToFloat64(openStreams)
	done := StreamOpened()
	assert.Equal(t, before+1, testutil.ToFloat64(openStreams))
	done()
	assert.Equal(t, before, testutil.ToFloat64(openStreams))
}
