package metrics

import (
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/oremus-labs/docai-console/apiclient"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	clientRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "docai_client_requests_total",
		Help: "Client calls grouped by method, route and outcome",
	}, []string{"method", "route", "outcome"})

	clientRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "docai_client_request_duration_seconds",
		Help:    "Client call latency",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "route"})

	clientStreamEvents = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "docai_client_stream_events_total",
		Help: "Event payloads delivered to stream consumers",
	}, []string{"route"})

	clientStreamsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "docai_client_streams_total",
		Help: "Finished client streams grouped by outcome",
	}, []string{"route", "outcome"})

	httpRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "docai_http_requests_total",
		Help: "Total HTTP requests processed by the devserver",
	}, []string{"method", "path", "status"})

	httpRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "docai_http_request_duration_seconds",
		Help:    "HTTP request duration",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path"})

	openStreams = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "docai_http_open_streams",
		Help: "Event streams currently held open by the devserver",
	})
)

// ClientObserver records apiclient outcomes as Prometheus series.
type ClientObserver struct{}

var _ apiclient.Observer = ClientObserver{}

// ObserveRequest implements apiclient.Observer.
func (ClientObserver) ObserveRequest(method, path string, _ int, kind apiclient.Kind, elapsed time.Duration) {
	route := RouteLabel(path)
	clientRequestsTotal.WithLabelValues(method, route, outcome(kind)).Inc()
	clientRequestDuration.WithLabelValues(method, route).Observe(elapsed.Seconds())
}

// ObserveStream implements apiclient.Observer.
func (ClientObserver) ObserveStream(path string, events int, kind apiclient.Kind, _ time.Duration) {
	route := RouteLabel(path)
	clientStreamEvents.WithLabelValues(route).Add(float64(events))
	clientStreamsTotal.WithLabelValues(route, outcome(kind)).Inc()
}

// ObserveHTTP records a request served by the devserver.
func ObserveHTTP(method, path string, status int, duration time.Duration) {
	if path == "" {
		path = "unmatched"
	}
	httpRequestsTotal.WithLabelValues(method, path, strconv.Itoa(status)).Inc()
	httpRequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

// StreamOpened tracks a long-lived response; call the returned func when it ends.
func StreamOpened() func() {
	openStreams.Inc()
	return openStreams.Dec
}

// RouteLabel collapses identifier segments and drops the query so label
// cardinality stays bounded.
func RouteLabel(path string) string {
	if i := strings.IndexByte(path, '?'); i >= 0 {
		path = path[:i]
	}
	segments := strings.Split(path, "/")
	for i, seg := range segments {
		if seg == "" {
			continue
		}
		if _, err := uuid.Parse(seg); err == nil {
			segments[i] = ":id"
			continue
		}
		if _, err := strconv.ParseUint(seg, 10, 64); err == nil {
			segments[i] = ":id"
		}
	}
	route := strings.Join(segments, "/")
	if route == "" {
		return "/"
	}
	return route
}

func outcome(kind apiclient.Kind) string {
	if kind == "" {
		return "ok"
	}
	return string(kind)
}

// WriteTextfile dumps every registered series in the text exposition format,
// for node_exporter's textfile collector. The file is replaced atomically.
func WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, prometheus.DefaultGatherer)
}
