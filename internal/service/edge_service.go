package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"time"

	"github.com/disintegration/imaging"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"go-canny-edge/internal/edge"
	"go-canny-edge/internal/encoder"
	apperrors "go-canny-edge/internal/errors"
	"go-canny-edge/internal/observer"
	"go-canny-edge/internal/repository"
	"go-canny-edge/pkg/models"
	"go-canny-edge/pkg/validation"
)

// EdgeService runs the fetch, decode, detect, encode pipeline
type EdgeService interface {
	GenerateEdges(ctx context.Context, req EdgeInput) (*models.EdgeResult, error)
	// Engine names the detector in use
	Engine() string
}

// EdgeInput is a validated request
type EdgeInput struct {
	RequestID string
	ImageURL  string
	Options   edge.Options
}

// Limits bounds the work done per request
type Limits struct {
	FetchTimeout      time.Duration
	ProcessingTimeout time.Duration
}

type edgeService struct {
	imageRepo      repository.ImageRepository
	urlValidator   *validation.URLValidator
	imageValidator *validation.ImageValidator
	detector       edge.Detector
	encoder        encoder.ImageEncoder
	events         observer.Subject
	limits         Limits
}

// NewEdgeService creates a new edge service
func NewEdgeService(
	imageRepository repository.ImageRepository,
	urlValidator *validation.URLValidator,
	imageValidator *validation.ImageValidator,
	detector edge.Detector,
	imageEncoder encoder.ImageEncoder,
	events observer.Subject,
	limits Limits,
) EdgeService {
	if events == nil {
		events = observer.NewSyncEventPublisher()
	}
	return &edgeService{
		imageRepo:      imageRepository,
		urlValidator:   urlValidator,
		imageValidator: imageValidator,
		detector:       detector,
		encoder:        imageEncoder,
		events:         events,
		limits:         limits,
	}
}

func (s *edgeService) Engine() string {
	return s.detector.Name()
}

// GenerateEdges returns a success result or an *apperrors.AppError naming
// the stage that failed.
func (s *edgeService) GenerateEdges(ctx context.Context, req EdgeInput) (result *models.EdgeResult, err error) {
	start := time.Now()
	base := observer.EdgeEvent{RequestID: req.RequestID, ImageURL: req.ImageURL, Engine: s.detector.Name()}

	defer func() {
		if r := recover(); r != nil {
			result = nil
			err = apperrors.NewInternalError(fmt.Sprint(r), fmt.Errorf("panic: %v", r))
		}
		if err != nil && !apperrors.IsType(err, apperrors.ErrorTypeFetch) {
			ev := base
			ev.EventType = observer.EdgeFailed
			ev.ProcessingTime = time.Since(start)
			ev.ErrorMessage = err.Error()
			ev.ErrorType = errorType(err)
			s.events.NotifyObservers(ctx, ev)
		}
	}()

	started := base
	started.EventType = observer.EdgeStarted
	s.events.NotifyObservers(ctx, started)

	data, err := s.fetch(ctx, req, base)
	if err != nil {
		return nil, err
	}

	img, err := s.decode(data)
	if err != nil {
		return nil, err
	}

	edges, err := s.detect(ctx, img, req.Options)
	if err != nil {
		return nil, err
	}

	encoded, err := encoder.EncodeBase64(s.encoder, edges)
	if err != nil {
		return nil, apperrors.NewEncodeError(err)
	}

	stats := edge.Summarize(edges)
	done := base
	done.EventType = observer.EdgeCompleted
	done.Success = true
	done.ProcessingTime = time.Since(start)
	done.EdgeDensity = stats.Density
	done.Metadata = map[string]interface{}{
		"width":          stats.Width,
		"height":         stats.Height,
		"edge_pixels":    stats.EdgePixels,
		"low_threshold":  req.Options.LowThreshold,
		"high_threshold": req.Options.HighThreshold,
	}
	s.events.NotifyObservers(ctx, done)

	return &models.EdgeResult{
		Status:        models.StatusSuccess,
		ImageURL:      req.ImageURL,
		LowThreshold:  req.Options.LowThreshold,
		HighThreshold: req.Options.HighThreshold,
		ImageBase64:   encoded,
	}, nil
}

// fetch reports every way a locator can fail to produce bytes, including
// a URL the validator refuses, as the same fetch error.
func (s *edgeService) fetch(ctx context.Context, req EdgeInput, base observer.EdgeEvent) ([]byte, error) {
	fetchCtx := ctx
	if s.limits.FetchTimeout > 0 {
		var cancel context.CancelFunc
		fetchCtx, cancel = context.WithTimeout(ctx, s.limits.FetchTimeout)
		defer cancel()
	}

	start := time.Now()
	var data []byte
	var err error
	if s.urlValidator != nil {
		err = s.urlValidator.ValidateImageURL(req.ImageURL)
	}
	if err == nil {
		data, err = s.imageRepo.FetchImage(fetchCtx, req.ImageURL)
	}

	ev := base
	ev.ProcessingTime = time.Since(start)
	if err != nil {
		ev.EventType = observer.ImageFetchFailed
		ev.ErrorMessage = err.Error()
		ev.ErrorType = string(apperrors.ErrorTypeFetch)
		s.events.NotifyObservers(ctx, ev)
		return nil, apperrors.NewFetchError(err)
	}

	ev.EventType = observer.ImageFetched
	ev.Success = true
	ev.SourceBytes = len(data)
	s.events.NotifyObservers(ctx, ev)
	return data, nil
}

// decode checks the header first so oversized or non-image payloads are
// rejected before any pixel buffer is allocated.
func (s *edgeService) decode(data []byte) (image.Image, error) {
	if s.imageValidator != nil {
		if _, err := s.imageValidator.Inspect(data); err != nil {
			return nil, err
		}
	}

	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return nil, apperrors.NewDecodeError(err.Error(), err)
	}
	return img, nil
}

func (s *edgeService) detect(ctx context.Context, img image.Image, opts edge.Options) (*image.Gray, error) {
	if s.limits.ProcessingTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.limits.ProcessingTimeout)
		defer cancel()
	}

	edges, err := s.detector.Detect(ctx, img, opts)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, apperrors.NewTimeoutError("edge detection timed out", err)
		}
		return nil, apperrors.NewTransformError(err.Error(), err)
	}
	return edges, nil
}

func errorType(err error) string {
	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		return string(appErr.Type)
	}
	return string(apperrors.ErrorTypeInternal)
}
