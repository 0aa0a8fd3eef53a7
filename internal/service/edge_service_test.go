package service

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"image"
	"image/color"
	"image/png"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go-canny-edge/internal/edge"
	"go-canny-edge/internal/encoder"
	apperrors "go-canny-edge/internal/errors"
	"go-canny-edge/internal/observer"
	"go-canny-edge/internal/repository"
	"go-canny-edge/internal/storage"
	"go-canny-edge/pkg/models"
	"go-canny-edge/pkg/validation"
)

func squarePNG(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			c := color.RGBA{20, 30, 40, 255}
			if x >= w/4 && x < 3*w/4 && y >= h/4 && y < 3*h/4 {
				c = color.RGBA{230, 220, 210, 255}
			}
			img.Set(x, y, c)
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func serve(t *testing.T, status int, contentType string, body []byte) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", contentType)
		w.WriteHeader(status)
		_, _ = w.Write(body)
	}))
	t.Cleanup(srv.Close)
	return srv
}

type recorder struct {
	events []observer.EdgeEvent
}

func (r *recorder) OnEvent(ctx context.Context, event observer.EdgeEvent) {
	r.events = append(r.events, event)
}

func (r *recorder) GetObserverName() string { return "recorder" }

func (r *recorder) types() []observer.EventType {
	out := make([]observer.EventType, 0, len(r.events))
	for _, e := range r.events {
		out = append(out, e.EventType)
	}
	return out
}

type failingEncoder struct{}

func (failingEncoder) Encode(img image.Image) ([]byte, error) { return nil, errors.New("disk full") }

type panickingDetector struct{}

func (panickingDetector) Detect(ctx context.Context, img image.Image, opts edge.Options) (*image.Gray, error) {
	panic("index out of range")
}
func (panickingDetector) Name() string { return "panicking" }
func (panickingDetector) Close() error { return nil }

type slowDetector struct{}

func (slowDetector) Detect(ctx context.Context, img image.Image, opts edge.Options) (*image.Gray, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}
func (slowDetector) Name() string { return "slow" }
func (slowDetector) Close() error { return nil }

type serviceOpts struct {
	detector edge.Detector
	encoder  encoder.ImageEncoder
	limits   Limits
	events   *recorder
}

func newTestService(t *testing.T, o serviceOpts) EdgeService {
	t.Helper()
	if o.detector == nil {
		o.detector = edge.NewCannyDetector(2)
		t.Cleanup(func() { _ = o.detector.Close() })
	}
	if o.encoder == nil {
		o.encoder = encoder.NewPNGEncoder("default")
	}
	publisher := observer.NewSyncEventPublisher()
	if o.events != nil {
		publisher.Subscribe(o.events)
	}
	fetcher := storage.NewHTTPImageFetcher(storage.HTTPFetcherOptions{Timeout: 5 * time.Second, MaxBytes: 1 << 20})
	return NewEdgeService(
		repository.NewSourceRepository(fetcher, nil),
		validation.NewURLValidator(),
		validation.NewImageValidator(1<<20),
		o.detector,
		o.encoder,
		publisher,
		o.limits,
	)
}

func decodeResult(t *testing.T, result *models.EdgeResult) *image.Gray {
	t.Helper()
	raw, err := base64.StdEncoding.DecodeString(result.ImageBase64)
	require.NoError(t, err)
	img, err := png.Decode(bytes.NewReader(raw))
	require.NoError(t, err)
	gray, ok := img.(*image.Gray)
	require.True(t, ok, "expected single-channel PNG, got %T", img)
	return gray
}

func TestGenerateEdges_Success(t *testing.T) {
	srv := serve(t, http.StatusOK, "image/png", squarePNG(t, 64, 48))
	events := &recorder{}
	svc := newTestService(t, serviceOpts{events: events})

	result, err := svc.GenerateEdges(context.Background(), EdgeInput{
		RequestID: "req-1",
		ImageURL:  srv.URL + "/img.png",
		Options:   edge.DefaultOptions(),
	})
	require.NoError(t, err)

	assert.Equal(t, models.StatusSuccess, result.Status)
	assert.Equal(t, srv.URL+"/img.png", result.ImageURL)
	assert.Equal(t, 100, result.LowThreshold)
	assert.Equal(t, 200, result.HighThreshold)

	gray := decodeResult(t, result)
	assert.Equal(t, 64, gray.Bounds().Dx())
	assert.Equal(t, 48, gray.Bounds().Dy())

	stats := edge.Summarize(gray)
	assert.Greater(t, stats.EdgePixels, 0)

	assert.Equal(t, []observer.EventType{observer.EdgeStarted, observer.ImageFetched, observer.EdgeCompleted}, events.types())
	assert.Equal(t, "req-1", events.events[2].RequestID)
	assert.Equal(t, "native", events.events[2].Engine)
}

func TestGenerateEdges_FetchFailures(t *testing.T) {
	tests := []struct {
		name string
		url  func(t *testing.T) string
	}{
		{"not found", func(t *testing.T) string { return serve(t, http.StatusNotFound, "text/plain", []byte("nope")).URL }},
		{"server error", func(t *testing.T) string { return serve(t, http.StatusInternalServerError, "text/plain", nil).URL }},
		{"unreachable", func(t *testing.T) string {
			srv := httptest.NewServer(http.NotFoundHandler())
			srv.Close()
			return srv.URL
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			events := &recorder{}
			svc := newTestService(t, serviceOpts{events: events})

			result, err := svc.GenerateEdges(context.Background(), EdgeInput{ImageURL: tt.url(t), Options: edge.DefaultOptions()})
			require.Error(t, err)
			assert.Nil(t, result)
			assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeFetch))
			assert.Equal(t, http.StatusBadRequest, apperrors.GetStatusCode(err))
			assert.Equal(t, "Erro ao baixar a imagem.", apperrors.PublicMessage(err))
			assert.Equal(t, []observer.EventType{observer.EdgeStarted, observer.ImageFetchFailed}, events.types())
		})
	}
}

func TestGenerateEdges_FetchTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	t.Cleanup(srv.Close)

	svc := newTestService(t, serviceOpts{limits: Limits{FetchTimeout: 50 * time.Millisecond}})
	_, err := svc.GenerateEdges(context.Background(), EdgeInput{ImageURL: srv.URL, Options: edge.DefaultOptions()})
	require.Error(t, err)
	assert.Equal(t, "Erro ao baixar a imagem.", apperrors.PublicMessage(err))
}

func TestGenerateEdges_NonImageIsDecodeError(t *testing.T) {
	srv := serve(t, http.StatusOK, "text/html", []byte("<!doctype html><html><body>hello</body></html>"))
	events := &recorder{}
	svc := newTestService(t, serviceOpts{events: events})

	result, err := svc.GenerateEdges(context.Background(), EdgeInput{ImageURL: srv.URL, Options: edge.DefaultOptions()})
	require.Error(t, err)
	assert.Nil(t, result)
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeDecode))
	assert.Equal(t, http.StatusInternalServerError, apperrors.GetStatusCode(err))
	assert.NotEmpty(t, apperrors.PublicMessage(err))

	require.NotEmpty(t, events.events)
	last := events.events[len(events.events)-1]
	assert.Equal(t, observer.EdgeFailed, last.EventType)
	assert.Equal(t, "decode", last.ErrorType)
}

func TestGenerateEdges_UnusableURLIsFetchError(t *testing.T) {
	for _, u := range []string{"", "ftp://example.com/a.png", "example.com/a.png", "not a url"} {
		t.Run(u, func(t *testing.T) {
			events := &recorder{}
			svc := newTestService(t, serviceOpts{events: events})

			_, err := svc.GenerateEdges(context.Background(), EdgeInput{ImageURL: u, Options: edge.DefaultOptions()})
			require.Error(t, err)
			assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeFetch))
			assert.Equal(t, http.StatusBadRequest, apperrors.GetStatusCode(err))
			assert.Equal(t, "Erro ao baixar a imagem.", apperrors.PublicMessage(err))
			assert.Equal(t, []observer.EventType{observer.EdgeStarted, observer.ImageFetchFailed}, events.types())
		})
	}
}

func TestGenerateEdges_DetectTimeout(t *testing.T) {
	srv := serve(t, http.StatusOK, "image/png", squarePNG(t, 16, 16))
	svc := newTestService(t, serviceOpts{
		detector: slowDetector{},
		limits:   Limits{ProcessingTimeout: 20 * time.Millisecond},
	})

	_, err := svc.GenerateEdges(context.Background(), EdgeInput{ImageURL: srv.URL, Options: edge.DefaultOptions()})
	require.Error(t, err)
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeTimeout))
	assert.Equal(t, http.StatusInternalServerError, apperrors.GetStatusCode(err))
	assert.Equal(t, "edge detection timed out", apperrors.PublicMessage(err))
}

func TestGenerateEdges_InvertedThresholds(t *testing.T) {
	srv := serve(t, http.StatusOK, "image/png", squarePNG(t, 40, 40))
	svc := newTestService(t, serviceOpts{})

	inverted, err := svc.GenerateEdges(context.Background(), EdgeInput{
		ImageURL: srv.URL,
		Options:  edge.DefaultOptions().WithThresholds(200, 100),
	})
	require.NoError(t, err)
	assert.Equal(t, 200, inverted.LowThreshold)
	assert.Equal(t, 100, inverted.HighThreshold)

	ordered, err := svc.GenerateEdges(context.Background(), EdgeInput{
		ImageURL: srv.URL,
		Options:  edge.DefaultOptions().WithThresholds(100, 200),
	})
	require.NoError(t, err)
	assert.Equal(t, ordered.ImageBase64, inverted.ImageBase64)
}

func TestGenerateEdges_Idempotent(t *testing.T) {
	srv := serve(t, http.StatusOK, "image/png", squarePNG(t, 57, 33))
	svc := newTestService(t, serviceOpts{})
	in := EdgeInput{ImageURL: srv.URL, Options: edge.DefaultOptions().WithThresholds(50, 150)}

	first, err := svc.GenerateEdges(context.Background(), in)
	require.NoError(t, err)
	second, err := svc.GenerateEdges(context.Background(), in)
	require.NoError(t, err)
	assert.Equal(t, first.ImageBase64, second.ImageBase64)
}

func TestGenerateEdges_RoundTrip(t *testing.T) {
	srv := serve(t, http.StatusOK, "image/png", squarePNG(t, 32, 32))
	svc := newTestService(t, serviceOpts{})

	result, err := svc.GenerateEdges(context.Background(), EdgeInput{ImageURL: srv.URL, Options: edge.DefaultOptions()})
	require.NoError(t, err)

	gray := decodeResult(t, result)
	for _, v := range gray.Pix {
		assert.True(t, v == 0 || v == 255, "unexpected pixel value %d", v)
	}

	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, gray))
	again, err := png.Decode(bytes.NewReader(buf.Bytes()))
	require.NoError(t, err)
	assert.Equal(t, gray.Pix, again.(*image.Gray).Pix)
}

func TestGenerateEdges_EncodeFailure(t *testing.T) {
	srv := serve(t, http.StatusOK, "image/png", squarePNG(t, 16, 16))
	svc := newTestService(t, serviceOpts{encoder: failingEncoder{}})

	_, err := svc.GenerateEdges(context.Background(), EdgeInput{ImageURL: srv.URL, Options: edge.DefaultOptions()})
	require.Error(t, err)
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeEncode))
	assert.Equal(t, http.StatusInternalServerError, apperrors.GetStatusCode(err))
	assert.Equal(t, "Falha ao gerar imagem Canny.", apperrors.PublicMessage(err))
}

func TestGenerateEdges_RecoversDetectorPanic(t *testing.T) {
	srv := serve(t, http.StatusOK, "image/png", squarePNG(t, 16, 16))
	events := &recorder{}
	svc := newTestService(t, serviceOpts{detector: panickingDetector{}, events: events})

	result, err := svc.GenerateEdges(context.Background(), EdgeInput{ImageURL: srv.URL, Options: edge.DefaultOptions()})
	require.Error(t, err)
	assert.Nil(t, result)
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeInternal))
	assert.Equal(t, "index out of range", apperrors.PublicMessage(err))

	last := events.events[len(events.events)-1]
	assert.Equal(t, observer.EdgeFailed, last.EventType)
	assert.Equal(t, "internal", last.ErrorType)
}

func TestEngine(t *testing.T) {
	svc := newTestService(t, serviceOpts{})
	assert.Equal(t, "native", svc.Engine())
}
