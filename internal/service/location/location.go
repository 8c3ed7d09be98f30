// Package location acquires a best-effort position for an emergency alert.
//
// Positions are tried in order: coordinates reported by the device, the
// caller's last known position, then a GeoIP estimate. The whole chain runs
// under one bounded wait; failure is reported as ErrLocationUnavailable and
// callers are expected to continue with a degraded position.
package location

import (
	"context"
	"errors"
	"fmt"
	"time"

	"lifeline-plus/internal/domain/entity"

	"github.com/sirupsen/logrus"
)

// ErrLocationUnavailable covers permission denial, timeout and missing capability.
var ErrLocationUnavailable = errors.New("location unavailable")

// Position is a resolved coordinate pair.
type Position struct {
	Latitude   float64
	Longitude  float64
	Source     entity.LocationSource
	CapturedAt time.Time
}

// Degraded is the placeholder stored when no position could be acquired.
var Degraded = Position{Source: entity.LocationSourceNone}

// Request carries everything a locator may use.
type Request struct {
	Latitude   *float64
	Longitude  *float64
	CapturedAt *time.Time
	Phone      string
	ClientIP   string
}

// Locator is one source of positions.
type Locator interface {
	Locate(ctx context.Context, req Request) (Position, error)
}

type Acquirer struct {
	locators []Locator
	cache    *PositionCache
	timeout  time.Duration
	log      *logrus.Logger
}

func NewAcquirer(timeout time.Duration, cache *PositionCache, log *logrus.Logger, locators ...Locator) *Acquirer {
	return &Acquirer{
		locators: locators,
		cache:    cache,
		timeout:  timeout,
		log:      log,
	}
}

// Acquire returns the first position any locator can provide within the timeout.
// A fresh device position is remembered as the caller's last known position.
func (a *Acquirer) Acquire(ctx context.Context, req Request) (Position, error) {
	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	for _, locator := range a.locators {
		pos, err := locator.Locate(ctx, req)
		if err == nil {
			if pos.Source == entity.LocationSourceDevice && a.cache != nil && req.Phone != "" {
				if err := a.cache.Remember(ctx, req.Phone, pos); err != nil {
					a.log.Warnf("Failed to cache position for %s: %+v", req.Phone, err)
				}
			}
			return pos, nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return Position{}, fmt.Errorf("%w: %w", ErrLocationUnavailable, ctxErr)
		}
		a.log.Debugf("Locator %T gave no position: %v", locator, err)
	}

	return Position{}, ErrLocationUnavailable
}
