package repository

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubFetcher struct {
	name  string
	calls []string
}

func (s *stubFetcher) FetchImage(ctx context.Context, imageURL string) ([]byte, error) {
	s.calls = append(s.calls, imageURL)
	return []byte(s.name), nil
}

type stubBlob struct {
	stubFetcher
	host string
}

func (s *stubBlob) Owns(imageURL string) bool {
	return strings.Contains(imageURL, s.host)
}

func TestSourceRepository_RoutesByOwner(t *testing.T) {
	httpFetcher := &stubFetcher{name: "http"}
	blob := &stubBlob{stubFetcher: stubFetcher{name: "blob"}, host: "acct.blob.core.windows.net"}
	repo := NewSourceRepository(httpFetcher, blob)

	data, err := repo.FetchImage(context.Background(), "https://acct.blob.core.windows.net/c/x.png")
	require.NoError(t, err)
	assert.Equal(t, "blob", string(data))

	data, err = repo.FetchImage(context.Background(), "https://example.com/x.png")
	require.NoError(t, err)
	assert.Equal(t, "http", string(data))

	assert.Len(t, blob.calls, 1)
	assert.Len(t, httpFetcher.calls, 1)
}

func TestSourceRepository_NoBlobBackend(t *testing.T) {
	httpFetcher := &stubFetcher{name: "http"}
	repo := NewSourceRepository(httpFetcher, nil)

	data, err := repo.FetchImage(context.Background(), "https://acct.blob.core.windows.net/c/x.png")
	require.NoError(t, err)
	assert.Equal(t, "http", string(data))
}

func TestSourceRepository_NoBackends(t *testing.T) {
	repo := NewSourceRepository(nil, nil)

	_, err := repo.FetchImage(context.Background(), "https://example.com/x.png")
	assert.True(t, errors.Is(err, ErrSourceUnavailable))
}
