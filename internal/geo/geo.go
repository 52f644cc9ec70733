// Package geo holds the great-circle math used to validate coordinates and
// to pre-filter proximity queries with a bounding box.
package geo

import (
	"errors"
	"math"
)

// EarthRadiusKm is the mean Earth radius; MySQL ST_Distance_Sphere uses
// the same sphere (6370986 m) within rounding.
const EarthRadiusKm = 6370.986

var (
	ErrLatitude  = errors.New("latitude must be between -90 and 90")
	ErrLongitude = errors.New("longitude must be between -180 and 180")
)

// Point is a WGS84 coordinate in decimal degrees.
type Point struct {
	Lat float64
	Lng float64
}

// Validate rejects NaN and out-of-range coordinates.
func (p Point) Validate() error {
	if math.IsNaN(p.Lat) || p.Lat < -90 || p.Lat > 90 {
		return ErrLatitude
	}
	if math.IsNaN(p.Lng) || p.Lng < -180 || p.Lng > 180 {
		return ErrLongitude
	}
	return nil
}

// DistanceKm returns the haversine distance between a and b.
func DistanceKm(a, b Point) float64 {
	lat1, lat2 := radians(a.Lat), radians(b.Lat)
	dLat := lat2 - lat1
	dLng := radians(b.Lng - a.Lng)

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLng/2)*math.Sin(dLng/2)
	return 2 * EarthRadiusKm * math.Asin(math.Min(1, math.Sqrt(h)))
}

// Box is an axis-aligned latitude/longitude rectangle.
type Box struct {
	MinLat, MaxLat float64
	MinLng, MaxLng float64
}

// Contains reports whether p lies inside the box, edges included.
func (b Box) Contains(p Point) bool {
	return p.Lat >= b.MinLat && p.Lat <= b.MaxLat && p.Lng >= b.MinLng && p.Lng <= b.MaxLng
}

// BoundingBox returns a box containing every point within radiusKm of
// center.  Near the poles or across the antimeridian the longitude range
// widens to the full [-180, 180] so the box stays a superset of the circle.
func BoundingBox(center Point, radiusKm float64) Box {
	dLat := degrees(radiusKm / EarthRadiusKm)
	b := Box{
		MinLat: math.Max(-90, center.Lat-dLat),
		MaxLat: math.Min(90, center.Lat+dLat),
		MinLng: -180,
		MaxLng: 180,
	}
	if b.MinLat == -90 || b.MaxLat == 90 {
		return b
	}

	// angular radius projected onto the parallel of the center
	r := radiusKm / EarthRadiusKm
	s := math.Sin(r) / math.Cos(radians(center.Lat))
	if s >= 1 {
		return b
	}
	dLng := degrees(math.Asin(s))
	minLng, maxLng := center.Lng-dLng, center.Lng+dLng
	if minLng < -180 || maxLng > 180 {
		return b
	}
	b.MinLng, b.MaxLng = minLng, maxLng
	return b
}

func radians(d float64) float64 { return d * math.Pi / 180 }
func degrees(r float64) float64 { return r * 180 / math.Pi }
