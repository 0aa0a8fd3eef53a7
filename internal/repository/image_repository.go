package repository

import (
	"context"
	"fmt"

	"go-canny-edge/internal/storage"
)

// ImageRepository resolves a source locator to raw image bytes
type ImageRepository interface {
	// FetchImage retrieves the bytes behind a URL
	FetchImage(ctx context.Context, imageURL string) ([]byte, error)
}

// SourceRepository picks the Azure blob backend for URLs in the configured
// storage account and plain HTTP for everything else.
type SourceRepository struct {
	http storage.ImageFetcher
	blob storage.BlobStorage
}

// NewSourceRepository creates a repository. blob may be nil.
func NewSourceRepository(http storage.ImageFetcher, blob storage.BlobStorage) *SourceRepository {
	return &SourceRepository{http: http, blob: blob}
}

// FetchImage retrieves the image bytes from whichever backend owns the URL
func (r *SourceRepository) FetchImage(ctx context.Context, imageURL string) ([]byte, error) {
	if r.blob != nil && r.blob.Owns(imageURL) {
		return r.blob.FetchImage(ctx, imageURL)
	}
	if r.http == nil {
		return nil, fmt.Errorf("%w: %s", ErrSourceUnavailable, imageURL)
	}
	return r.http.FetchImage(ctx, imageURL)
}
