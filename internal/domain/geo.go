package domain

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// GeoPoint is the only GeoJSON geometry a Location holds.
const GeoPoint = "Point"

// Distance units of the geo queries.
const (
	UnitMiles      = "mi"
	UnitKilometers = "km"
)

// Earth radii used to turn a distance into an angle, per unit.
const (
	EarthRadiusMi = 3963.2
	EarthRadiusKm = 6378.1
)

const earthRadiusMeters = EarthRadiusKm * 1000

// Meters are converted to the requested unit with these factors.
const (
	metersToMiles = 0.000621371
	metersToKm    = 0.001
)

// ErrBadLatLng is returned for a center that is not "lat,lng".
var ErrBadLatLng = errors.New("please provide latitude and longitude in the format lat,lng")

// Location is a GeoJSON point with an optional address. Coordinates are
// [longitude, latitude]. Day is the tour day the stop is visited on.
type Location struct {
	Type        string    `json:"type" validate:"omitempty,eq=Point"`
	Coordinates []float64 `json:"coordinates" validate:"required,lnglat"`
	Address     string    `json:"address,omitempty"`
	Description string    `json:"description,omitempty"`
	Day         int       `json:"day,omitempty" validate:"gte=0"`
}

// Point returns the coordinates of l, or false when l is not a usable point.
func (l *Location) Point() (LatLng, bool) {
	if l == nil || len(l.Coordinates) != 2 {
		return LatLng{}, false
	}
	return LatLng{Lat: l.Coordinates[1], Lng: l.Coordinates[0]}, true
}

// LatLng is a position in degrees.
type LatLng struct {
	Lat float64
	Lng float64
}

// ParseLatLng parses "lat,lng".
func ParseLatLng(s string) (LatLng, error) {
	latS, lngS, ok := strings.Cut(s, ",")
	if !ok {
		return LatLng{}, ErrBadLatLng
	}
	lat, err := strconv.ParseFloat(strings.TrimSpace(latS), 64)
	if err != nil {
		return LatLng{}, ErrBadLatLng
	}
	lng, err := strconv.ParseFloat(strings.TrimSpace(lngS), 64)
	if err != nil {
		return LatLng{}, ErrBadLatLng
	}
	if lat < -90 || lat > 90 || lng < -180 || lng > 180 {
		return LatLng{}, ErrBadLatLng
	}
	return LatLng{Lat: lat, Lng: lng}, nil
}

// AngleTo is the central angle between p and q in radians (haversine).
func (p LatLng) AngleTo(q LatLng) float64 {
	lat1, lat2 := radians(p.Lat), radians(q.Lat)
	dLat := lat2 - lat1
	dLng := radians(q.Lng - p.Lng)

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLng/2)*math.Sin(dLng/2)
	return 2 * math.Asin(math.Sqrt(math.Min(1, h)))
}

// Meters is the distance from p to q on a sphere of radius EarthRadiusKm.
func (p LatLng) Meters(q LatLng) float64 {
	return p.AngleTo(q) * earthRadiusMeters
}

func radians(deg float64) float64 { return deg * math.Pi / 180 }

// EarthRadius returns the earth radius in unit.
func EarthRadius(unit string) (float64, error) {
	switch unit {
	case UnitMiles:
		return EarthRadiusMi, nil
	case UnitKilometers:
		return EarthRadiusKm, nil
	}
	return 0, fmt.Errorf("unit must be %s or %s, got %q", UnitMiles, UnitKilometers, unit)
}

// MetersIn converts meters to unit. Unknown units are reported as in
// EarthRadius.
func MetersIn(m float64, unit string) (float64, error) {
	switch unit {
	case UnitMiles:
		return m * metersToMiles, nil
	case UnitKilometers:
		return m * metersToKm, nil
	}
	return 0, fmt.Errorf("unit must be %s or %s, got %q", UnitMiles, UnitKilometers, unit)
}
