package storage

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob"
)

// BlobStorage fetches images from an Azure storage account using the
// account's shared key, so private containers work too.
type BlobStorage interface {
	ImageFetcher
	// Owns reports whether the locator points into this account.
	Owns(imageURL string) bool
}

type azureStorage struct {
	client      *azblob.Client
	accountHost string
	maxBytes    int64
}

func NewAzureStorage(accountName string, accountKey string, maxBytes int64) (BlobStorage, error) {
	credential, err := azblob.NewSharedKeyCredential(accountName, accountKey)
	if err != nil {
		return nil, fmt.Errorf("azure credential: %w", err)
	}

	accountHost := fmt.Sprintf("%s.blob.core.windows.net", accountName)
	client, err := azblob.NewClientWithSharedKeyCredential("https://"+accountHost, credential, nil)
	if err != nil {
		return nil, fmt.Errorf("azure client: %w", err)
	}

	return &azureStorage{client: client, accountHost: accountHost, maxBytes: maxBytes}, nil
}

func (s *azureStorage) Owns(imageURL string) bool {
	parsed, err := url.Parse(imageURL)
	if err != nil {
		return false
	}
	return strings.EqualFold(parsed.Hostname(), s.accountHost)
}

func (s *azureStorage) FetchImage(ctx context.Context, imageURL string) ([]byte, error) {
	containerName, blobName, err := SplitBlobURL(imageURL)
	if err != nil {
		return nil, err
	}

	resp, err := s.client.DownloadStream(ctx, containerName, blobName, nil)
	if err != nil {
		return nil, fmt.Errorf("download failed: %w", err)
	}
	body := resp.Body
	defer body.Close()

	return readLimited(body, s.maxBytes)
}

// SplitBlobURL turns https://acct.blob.core.windows.net/container/dir/blob.png
// into ("container", "dir/blob.png").
func SplitBlobURL(blobURL string) (string, string, error) {
	parsed, err := url.Parse(blobURL)
	if err != nil {
		return "", "", fmt.Errorf("invalid blob URL: %w", err)
	}

	path := strings.TrimPrefix(parsed.Path, "/")
	containerName, blobName, ok := strings.Cut(path, "/")
	if !ok || containerName == "" || blobName == "" {
		return "", "", fmt.Errorf("invalid blob URL: %q has no container/blob path", blobURL)
	}
	return containerName, blobName, nil
}
