// Package geo encodes and decodes map coordinates.
//
// COORDINATE ENCODING:
// Coordinates travel and persist as a single text field:
//
//	"<lng>, <lat>"    e.g. "36.8219, -1.2921"  (Nairobi)
//
// Longitude comes FIRST. That is the order map libraries use for [x, y]
// pairs, and it is the order every stored row uses. Anything that reads or
// writes the field goes through Parse and Format so there is exactly one
// place where the order is decided.
//
// Format emits the shortest decimal form that parses back to the same
// float64, which gives Parse(Format(p)) == p for every valid Point.
package geo

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

const (
	MinLng = -180.0
	MaxLng = 180.0
	MinLat = -90.0
	MaxLat = 90.0
)

var (
	// ErrMalformed means the text is not two comma-separated numbers.
	ErrMalformed = errors.New("geo: malformed coordinates")
	// ErrOutOfRange means a component is NaN, infinite, or outside its range.
	ErrOutOfRange = errors.New("geo: coordinates out of range")
)

// Point is a decoded coordinate pair.
type Point struct {
	Lng float64
	Lat float64
}

// Validate reports whether both components are finite and in range.
func (p Point) Validate() error {
	if !finite(p.Lng) || !finite(p.Lat) {
		return fmt.Errorf("%w: components must be finite numbers", ErrOutOfRange)
	}
	if p.Lng < MinLng || p.Lng > MaxLng {
		return fmt.Errorf("%w: longitude %v not in [-180, 180]", ErrOutOfRange, p.Lng)
	}
	if p.Lat < MinLat || p.Lat > MaxLat {
		return fmt.Errorf("%w: latitude %v not in [-90, 90]", ErrOutOfRange, p.Lat)
	}
	return nil
}

// Pair returns the point as a [lng, lat] slice, the shape map clients expect.
func (p Point) Pair() []float64 {
	return []float64{p.Lng, p.Lat}
}

// Parse decodes "<lng>, <lat>". Whitespace around either number is ignored.
func Parse(s string) (Point, error) {
	parts := strings.Split(strings.TrimSpace(s), ",")
	if len(parts) != 2 {
		return Point{}, fmt.Errorf("%w: expected \"lng, lat\", got %q", ErrMalformed, s)
	}

	lng, err := strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
	if err != nil {
		return Point{}, fmt.Errorf("%w: longitude %q is not a number", ErrMalformed, parts[0])
	}
	lat, err := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
	if err != nil {
		return Point{}, fmt.Errorf("%w: latitude %q is not a number", ErrMalformed, parts[1])
	}

	p := Point{Lng: lng, Lat: lat}
	if err := p.Validate(); err != nil {
		return Point{}, err
	}
	return p, nil
}

// Format encodes p as "<lng>, <lat>". It does not validate; call Validate
// first when p did not come from Parse.
func Format(p Point) string {
	return strconv.FormatFloat(p.Lng, 'f', -1, 64) + ", " + strconv.FormatFloat(p.Lat, 'f', -1, 64)
}

// Canonical parses s and re-encodes it, so "  36.82190 ,-1.2921" is stored
// as "36.8219, -1.2921".
func Canonical(s string) (string, error) {
	p, err := Parse(s)
	if err != nil {
		return "", err
	}
	return Format(p), nil
}

func finite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}
