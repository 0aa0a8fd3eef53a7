package factory

import (
	"fmt"

	"go-canny-edge/internal/config"
	"go-canny-edge/internal/edge"
	"go-canny-edge/internal/encoder"
	"go-canny-edge/internal/repository"
	"go-canny-edge/internal/storage"
)

// StorageType represents different types of storage backends
type StorageType string

const (
	// HTTPStorage for HTTP-based image fetching
	HTTPStorage StorageType = "http"
	// AzureStorage for Azure blob storage
	AzureStorage StorageType = "azure"
)

// DetectorFactory creates edge detectors
type DetectorFactory interface {
	CreateDetector(engine string) (edge.Detector, error)
}

// StorageFactory creates storage implementations
type StorageFactory interface {
	CreateStorage(storageType StorageType) (storage.ImageFetcher, error)
}

// detectorFactory implements DetectorFactory
type detectorFactory struct {
	workers int
}

// NewDetectorFactory creates a detector factory sharing one worker count
func NewDetectorFactory(workers int) DetectorFactory {
	return &detectorFactory{workers: workers}
}

// CreateDetector creates a detector for a registered engine name
func (f *detectorFactory) CreateDetector(engine string) (edge.Detector, error) {
	if engine == "" {
		engine = config.EngineNative
	}
	return edge.NewEngine(engine, f.workers)
}

// storageFactory implements StorageFactory
type storageFactory struct {
	cfg *config.Config
}

// NewStorageFactory creates a new storage factory
func NewStorageFactory(cfg *config.Config) StorageFactory {
	return &storageFactory{cfg: cfg}
}

// CreateStorage creates a storage implementation based on the specified type
func (f *storageFactory) CreateStorage(storageType StorageType) (storage.ImageFetcher, error) {
	switch storageType {
	case HTTPStorage:
		return storage.NewHTTPImageFetcher(storage.HTTPFetcherOptions{
			Timeout:     f.cfg.ImageFetchTimeout,
			MaxBytes:    f.cfg.MaxImageBytes,
			InsecureTLS: f.cfg.FetchInsecureTLS,
		}), nil
	case AzureStorage:
		if !f.cfg.AzureEnabled() {
			return nil, fmt.Errorf("azure storage requires AZURE_STORAGE_ACCOUNT and AZURE_STORAGE_KEY")
		}
		return storage.NewAzureStorage(f.cfg.AzureAccountName, f.cfg.AzureAccountKey, f.cfg.MaxImageBytes)
	default:
		return nil, fmt.Errorf("unsupported storage type: %s", storageType)
	}
}

// ComponentFactory combines all factories
type ComponentFactory struct {
	DetectorFactory DetectorFactory
	StorageFactory  StorageFactory
	cfg             *config.Config
}

// NewComponentFactory creates a new component factory
func NewComponentFactory(cfg *config.Config) *ComponentFactory {
	return &ComponentFactory{
		DetectorFactory: NewDetectorFactory(cfg.EdgeWorkers),
		StorageFactory:  NewStorageFactory(cfg),
		cfg:             cfg,
	}
}

// CreateRepository routes blob URLs to Azure when credentials are set and
// everything else to HTTP.
func (f *ComponentFactory) CreateRepository() (repository.ImageRepository, error) {
	httpFetcher, err := f.StorageFactory.CreateStorage(HTTPStorage)
	if err != nil {
		return nil, err
	}

	var blob storage.BlobStorage
	if f.cfg.AzureEnabled() {
		fetcher, err := f.StorageFactory.CreateStorage(AzureStorage)
		if err != nil {
			return nil, fmt.Errorf("failed to create azure storage: %w", err)
		}
		var ok bool
		if blob, ok = fetcher.(storage.BlobStorage); !ok {
			return nil, fmt.Errorf("azure storage does not implement BlobStorage")
		}
	}

	return repository.NewSourceRepository(httpFetcher, blob), nil
}

// CreateEncoder creates the PNG encoder for the configured compression level
func (f *ComponentFactory) CreateEncoder() encoder.ImageEncoder {
	return encoder.NewPNGEncoder(f.cfg.PNGCompression)
}
