package models

import (
	"fmt"
	"strconv"
	"strings"
)

const StatusSuccess = "success"

// EdgeRequest is the form payload of POST /canny
type EdgeRequest struct {
	ImageURL      string  `form:"image_url" binding:"required"`
	LowThreshold  string  `form:"low_threshold"`
	HighThreshold string  `form:"high_threshold"`
	L2Gradient    bool    `form:"l2_gradient"`
	BlurRadius    float64 `form:"blur_radius" binding:"gte=0,lte=50"`
}

// Thresholds returns the requested thresholds. A field that is absent or
// sent empty takes its default.
func (r EdgeRequest) Thresholds(defaultLow, defaultHigh int) (int, int, error) {
	low, err := formInt("low_threshold", r.LowThreshold, defaultLow)
	if err != nil {
		return 0, 0, err
	}
	high, err := formInt("high_threshold", r.HighThreshold, defaultHigh)
	if err != nil {
		return 0, 0, err
	}
	return low, high, nil
}

func formInt(name, raw string, def int) (int, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return def, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer, got %q", name, raw)
	}
	return v, nil
}

// EdgeResult is the success body of POST /canny
type EdgeResult struct {
	Status        string `json:"status"`
	ImageURL      string `json:"image_url"`
	LowThreshold  int    `json:"low_threshold"`
	HighThreshold int    `json:"high_threshold"`
	ImageBase64   string `json:"image_base64"`
}

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error string `json:"error"`
}

// HealthResponse is the body of GET /health
type HealthResponse struct {
	Status  string   `json:"status"`
	Version string   `json:"version"`
	Time    string   `json:"time"`
	Engine  string   `json:"engine"`
	Engines []string `json:"engines"`
}
