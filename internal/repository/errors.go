package repository

import "errors"

var (
	// ErrSourceUnavailable indicates no fetcher could serve the locator
	ErrSourceUnavailable = errors.New("image source unavailable")
)
