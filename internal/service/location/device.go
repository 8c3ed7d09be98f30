package location

import (
	"context"
	"fmt"
	"time"

	"lifeline-plus/internal/domain/entity"
)

// DeviceLocator accepts coordinates reported by the caller's device,
// provided they are in range and not older than maxAge.
type DeviceLocator struct {
	maxAge time.Duration
	now    func() time.Time
}

func NewDeviceLocator(maxAge time.Duration) *DeviceLocator {
	return &DeviceLocator{maxAge: maxAge, now: time.Now}
}

func (l *DeviceLocator) Locate(ctx context.Context, req Request) (Position, error) {
	if req.Latitude == nil || req.Longitude == nil {
		return Position{}, fmt.Errorf("%w: no device coordinates", ErrLocationUnavailable)
	}
	if !ValidCoordinates(*req.Latitude, *req.Longitude) {
		return Position{}, fmt.Errorf("%w: coordinates out of range", ErrLocationUnavailable)
	}

	capturedAt := l.now()
	if req.CapturedAt != nil {
		if l.now().Sub(*req.CapturedAt) > l.maxAge {
			return Position{}, fmt.Errorf("%w: device position is stale", ErrLocationUnavailable)
		}
		capturedAt = *req.CapturedAt
	}

	return Position{
		Latitude:   *req.Latitude,
		Longitude:  *req.Longitude,
		Source:     entity.LocationSourceDevice,
		CapturedAt: capturedAt,
	}, nil
}

func ValidCoordinates(lat, lng float64) bool {
	return lat >= -90 && lat <= 90 && lng >= -180 && lng <= 180
}
