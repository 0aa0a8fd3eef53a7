package observer

import (
	"context"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
)

// EdgeEvent describes one step of an edge request
type EdgeEvent struct {
	EventType      EventType              `json:"event_type"`
	Timestamp      time.Time              `json:"timestamp"`
	RequestID      string                 `json:"request_id,omitempty"`
	ImageURL       string                 `json:"image_url"`
	Engine         string                 `json:"engine,omitempty"`
	ProcessingTime time.Duration          `json:"processing_time"`
	Success        bool                   `json:"success"`
	ErrorType      string                 `json:"error_type,omitempty"`
	ErrorMessage   string                 `json:"error_message,omitempty"`
	SourceBytes    int                    `json:"source_bytes,omitempty"`
	EdgeDensity    float64                `json:"edge_density,omitempty"`
	Metadata       map[string]interface{} `json:"metadata,omitempty"`
}

// EventType represents the type of edge event
type EventType string

const (
	// EdgeStarted when a request enters the pipeline
	EdgeStarted EventType = "edge_started"
	// EdgeCompleted when the edge map was produced and encoded
	EdgeCompleted EventType = "edge_completed"
	// EdgeFailed when any stage after the fetch fails
	EdgeFailed EventType = "edge_failed"
	// ImageFetched when the source bytes were downloaded
	ImageFetched EventType = "image_fetched"
	// ImageFetchFailed when the source could not be downloaded
	ImageFetchFailed EventType = "image_fetch_failed"
)

// Observer defines the interface for event observers
type Observer interface {
	OnEvent(ctx context.Context, event EdgeEvent)
	GetObserverName() string
}

// Subject defines the interface for event publishers
type Subject interface {
	Subscribe(observer Observer)
	Unsubscribe(observer Observer)
	NotifyObservers(ctx context.Context, event EdgeEvent)
}

// LoggingObserver logs edge events
type LoggingObserver struct {
	logger *logrus.Logger
}

// NewLoggingObserver creates a new logging observer
func NewLoggingObserver(logger *logrus.Logger) Observer {
	return &LoggingObserver{
		logger: logger,
	}
}

// OnEvent handles edge events by logging them
func (o *LoggingObserver) OnEvent(ctx context.Context, event EdgeEvent) {
	fields := logrus.Fields{
		"event_type":         event.EventType,
		"image_url":          event.ImageURL,
		"processing_time_ms": event.ProcessingTime.Milliseconds(),
		"success":            event.Success,
	}
	if event.RequestID != "" {
		fields["request_id"] = event.RequestID
	}
	if event.Engine != "" {
		fields["engine"] = event.Engine
	}
	if event.ErrorMessage != "" {
		fields["error"] = event.ErrorMessage
		fields["error_type"] = event.ErrorType
	}
	if event.SourceBytes > 0 {
		fields["source_bytes"] = event.SourceBytes
	}

	for k, v := range event.Metadata {
		fields[k] = v
	}

	switch event.EventType {
	case EdgeStarted:
		o.logger.WithFields(fields).Debug("Edge detection started")
	case EdgeCompleted:
		fields["edge_density"] = event.EdgeDensity
		o.logger.WithFields(fields).Info("Edge detection completed")
	case EdgeFailed:
		o.logger.WithFields(fields).Error("Edge detection failed")
	case ImageFetched:
		o.logger.WithFields(fields).Debug("Image fetched successfully")
	case ImageFetchFailed:
		o.logger.WithFields(fields).Warn("Image fetch failed")
	default:
		o.logger.WithFields(fields).Info("Edge event occurred")
	}
}

// GetObserverName returns the observer name
func (o *LoggingObserver) GetObserverName() string {
	return "logging_observer"
}

// MetricsObserver exports edge events as Prometheus metrics
type MetricsObserver struct {
	requests    *prometheus.CounterVec
	duration    *prometheus.HistogramVec
	sourceBytes prometheus.Histogram
	edgeDensity prometheus.Histogram
}

// NewMetricsObserver creates the collectors and registers them on reg
func NewMetricsObserver(reg prometheus.Registerer) (*MetricsObserver, error) {
	o := &MetricsObserver{
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "canny",
			Name:      "requests_total",
			Help:      "Edge requests by outcome.",
		}, []string{"outcome"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "canny",
			Name:      "stage_duration_seconds",
			Help:      "Time spent per pipeline stage.",
			Buckets:   prometheus.ExponentialBuckets(0.005, 2, 12),
		}, []string{"stage"}),
		sourceBytes: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "canny",
			Name:      "source_bytes",
			Help:      "Size of downloaded source images.",
			Buckets:   prometheus.ExponentialBuckets(1024, 4, 10),
		}),
		edgeDensity: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "canny",
			Name:      "edge_density_ratio",
			Help:      "Fraction of output pixels marked as edges.",
			Buckets:   prometheus.LinearBuckets(0, 0.05, 20),
		}),
	}

	for _, c := range []prometheus.Collector{o.requests, o.duration, o.sourceBytes, o.edgeDensity} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return o, nil
}

// OnEvent handles edge events by updating collectors
func (o *MetricsObserver) OnEvent(ctx context.Context, event EdgeEvent) {
	switch event.EventType {
	case ImageFetched:
		o.duration.WithLabelValues("fetch").Observe(event.ProcessingTime.Seconds())
		o.sourceBytes.Observe(float64(event.SourceBytes))
	case ImageFetchFailed:
		o.duration.WithLabelValues("fetch").Observe(event.ProcessingTime.Seconds())
		o.requests.WithLabelValues("fetch_error").Inc()
	case EdgeCompleted:
		o.duration.WithLabelValues("total").Observe(event.ProcessingTime.Seconds())
		o.edgeDensity.Observe(event.EdgeDensity)
		o.requests.WithLabelValues("success").Inc()
	case EdgeFailed:
		outcome := event.ErrorType
		if outcome == "" {
			outcome = "internal"
		}
		o.requests.WithLabelValues(outcome + "_error").Inc()
	}
}

// GetObserverName returns the observer name
func (o *MetricsObserver) GetObserverName() string {
	return "metrics_observer"
}

// EventPublisher implements the Subject interface
type EventPublisher struct {
	mu        sync.RWMutex
	observers []Observer
	async     bool
}

// NewEventPublisher creates a publisher that notifies observers on their
// own goroutines so a slow observer never delays a response.
func NewEventPublisher() *EventPublisher {
	return &EventPublisher{
		observers: make([]Observer, 0),
		async:     true,
	}
}

// NewSyncEventPublisher notifies observers inline, in subscription order
func NewSyncEventPublisher() *EventPublisher {
	return &EventPublisher{observers: make([]Observer, 0)}
}

// Subscribe adds an observer
func (p *EventPublisher) Subscribe(observer Observer) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.observers = append(p.observers, observer)
}

// Unsubscribe removes an observer
func (p *EventPublisher) Unsubscribe(observer Observer) {
	p.mu.Lock()
	defer p.mu.Unlock()

	for i, obs := range p.observers {
		if obs.GetObserverName() == observer.GetObserverName() {
			p.observers = append(p.observers[:i], p.observers[i+1:]...)
			break
		}
	}
}

// NotifyObservers notifies all observers of an event
func (p *EventPublisher) NotifyObservers(ctx context.Context, event EdgeEvent) {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	p.mu.RLock()
	observers := make([]Observer, len(p.observers))
	copy(observers, p.observers)
	p.mu.RUnlock()

	// the request context may be gone by the time an async observer runs
	ctx = context.WithoutCancel(ctx)

	for _, observer := range observers {
		if p.async {
			go notify(ctx, observer, event)
		} else {
			notify(ctx, observer, event)
		}
	}
}

func notify(ctx context.Context, obs Observer, event EdgeEvent) {
	defer func() {
		if r := recover(); r != nil {
			// Log panic but don't crash the application
			logrus.WithField("observer", obs.GetObserverName()).
				WithField("panic", r).
				Error("Observer panicked while handling event")
		}
	}()
	obs.OnEvent(ctx, event)
}
