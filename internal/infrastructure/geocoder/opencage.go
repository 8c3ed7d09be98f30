package geocoder

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"lifeline-plus/config"

	"github.com/go-resty/resty/v2"
	gocache "github.com/patrickmn/go-cache"
	"github.com/sirupsen/logrus"
)

// ErrNoResult is returned when the provider knows no place for the coordinates.
var ErrNoResult = errors.New("no geocoding result")

// ReverseGeocoder resolves coordinates to a human-readable place name.
type ReverseGeocoder interface {
	Reverse(ctx context.Context, lat, lng float64) (string, error)
}

type OpenCageGeocoder struct {
	client *resty.Client
	apiKey string
	cache  *gocache.Cache
	log    *logrus.Logger
}

type openCageResponse struct {
	Results []struct {
		Formatted string `json:"formatted"`
	} `json:"results"`
	Status struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"status"`
}

func NewOpenCageGeocoder(cfg config.GeocoderConfig, log *logrus.Logger) *OpenCageGeocoder {
	client := resty.New().
		SetBaseURL(cfg.BaseURL).
		SetTimeout(cfg.Timeout).
		SetHeader("Accept", "application/json")

	return &OpenCageGeocoder{
		client: client,
		apiKey: cfg.APIKey,
		cache:  gocache.New(cfg.CacheTTL, 2*cfg.CacheTTL),
		log:    log,
	}
}

// Reverse looks up the formatted address for lat,lng.
// Results are cached per ~1m grid cell for the configured TTL.
func (g *OpenCageGeocoder) Reverse(ctx context.Context, lat, lng float64) (string, error) {
	cacheKey := fmt.Sprintf("%.5f,%.5f", lat, lng)
	if cached, ok := g.cache.Get(cacheKey); ok {
		return cached.(string), nil
	}

	var out openCageResponse
	resp, err := g.client.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"q":              formatCoord(lat) + "," + formatCoord(lng),
			"key":            g.apiKey,
			"limit":          "1",
			"no_annotations": "1",
		}).
		SetResult(&out).
		Get("/geocode/v1/json")
	if err != nil {
		return "", fmt.Errorf("opencage request: %w", err)
	}
	if resp.IsError() {
		g.log.Warnf("OpenCage returned status %d for %s", resp.StatusCode(), cacheKey)
		return "", fmt.Errorf("opencage status %d", resp.StatusCode())
	}
	if len(out.Results) == 0 || out.Results[0].Formatted == "" {
		return "", ErrNoResult
	}

	place := out.Results[0].Formatted
	g.cache.SetDefault(cacheKey, place)
	return place, nil
}

func formatCoord(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
