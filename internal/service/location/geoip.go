package location

import (
	"context"
	"fmt"
	"net"

	"lifeline-plus/internal/domain/entity"

	"github.com/oschwald/geoip2-golang"
)

type cityLookup interface {
	City(ip net.IP) (*geoip2.City, error)
}

// GeoIPLocator estimates a position from the client IP using a
// MaxMind GeoLite2/GeoIP2 City database. City-level accuracy at best.
type GeoIPLocator struct {
	db     cityLookup
	closer func() error
}

// OpenGeoIPLocator opens the mmdb file at path.
func OpenGeoIPLocator(path string) (*GeoIPLocator, error) {
	reader, err := geoip2.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open geoip database: %w", err)
	}
	return &GeoIPLocator{db: reader, closer: reader.Close}, nil
}

func (l *GeoIPLocator) Close() error {
	if l.closer == nil {
		return nil
	}
	return l.closer()
}

func (l *GeoIPLocator) Locate(ctx context.Context, req Request) (Position, error) {
	ip := net.ParseIP(req.ClientIP)
	if ip == nil || ip.IsLoopback() || ip.IsPrivate() || ip.IsUnspecified() {
		return Position{}, fmt.Errorf("%w: no routable client ip", ErrLocationUnavailable)
	}

	record, err := l.db.City(ip)
	if err != nil {
		return Position{}, fmt.Errorf("geoip lookup: %w", err)
	}
	if record == nil || (record.Location.Latitude == 0 && record.Location.Longitude == 0) {
		return Position{}, fmt.Errorf("%w: ip not in database", ErrLocationUnavailable)
	}

	return Position{
		Latitude:  record.Location.Latitude,
		Longitude: record.Location.Longitude,
		Source:    entity.LocationSourceIP,
	}, nil
}
