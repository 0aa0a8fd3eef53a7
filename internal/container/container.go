package container

import (
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"go-canny-edge/internal/config"
	"go-canny-edge/internal/edge"
	"go-canny-edge/internal/factory"
	"go-canny-edge/internal/logger"
	"go-canny-edge/internal/observer"
	"go-canny-edge/internal/repository"
	"go-canny-edge/internal/service"
	"go-canny-edge/internal/transport"
	"go-canny-edge/pkg/validation"
)

// Container holds all application dependencies
type Container struct {
	config          *config.Config
	registry        *prometheus.Registry
	detector        edge.Detector
	imageRepository repository.ImageRepository
	edgeService     service.EdgeService
	handler         http.Handler
}

// NewContainer creates a new dependency injection container
func NewContainer(cfg *config.Config) (*Container, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}

	components := factory.NewComponentFactory(cfg)

	imageRepository, err := components.CreateRepository()
	if err != nil {
		return nil, fmt.Errorf("failed to create repository: %w", err)
	}

	detector, err := components.DetectorFactory.CreateDetector(cfg.EdgeEngine)
	if err != nil {
		return nil, fmt.Errorf("failed to create detector: %w", err)
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	events := observer.NewEventPublisher()
	events.Subscribe(observer.NewLoggingObserver(logger.Logger))
	if cfg.MetricsEnabled {
		metrics, err := observer.NewMetricsObserver(registry)
		if err != nil {
			_ = detector.Close()
			return nil, fmt.Errorf("failed to register metrics: %w", err)
		}
		events.Subscribe(metrics)
	}

	edgeService := service.NewEdgeService(
		imageRepository,
		validation.NewURLValidatorWithOptions(cfg.AllowedSchemes, cfg.AllowedHosts),
		validation.NewImageValidator(cfg.MaxImagePixels),
		detector,
		components.CreateEncoder(),
		events,
		service.Limits{
			FetchTimeout:      cfg.ImageFetchTimeout,
			ProcessingTimeout: cfg.ProcessingTimeout,
		},
	)
	handler := transport.NewHandler(edgeService, cfg, registry)

	return &Container{
		config:          cfg,
		registry:        registry,
		detector:        detector,
		imageRepository: imageRepository,
		edgeService:     edgeService,
		handler:         handler,
	}, nil
}

// Handler returns the HTTP handler
func (c *Container) Handler() http.Handler {
	return c.handler
}

// Config returns the configuration
func (c *Container) Config() *config.Config {
	return c.config
}

// EdgeService returns the pipeline service
func (c *Container) EdgeService() service.EdgeService {
	return c.edgeService
}

// Close releases the detector's worker pool
func (c *Container) Close() error {
	return c.detector.Close()
}
