// Copyright 2026 The Roadlog Authors
// SPDX-License-Identifier: Apache-2.0

// Package geo provides great-circle distance math and the incremental
// accumulator the ingestion passes feed GPS fixes into.
package geo

import "math"

// earthRadiusMeters is the mean Earth radius used by the haversine
// formula. The value is a protocol constant: recorded segment
// distances were computed with it, so changing it would make old and
// new distances disagree.
const earthRadiusMeters = 6371000.0

// metersPerMile converts accumulated meters to the miles stored on
// Route and Segment rows.
const metersPerMile = 0.000621371

// Haversine returns the great-circle distance in meters between two
// WGS84 points. Symmetric; zero for identical points.
func Haversine(lat1, lng1, lat2, lng2 float64) float64 {
	if lat1 == lat2 && lng1 == lng2 {
		return 0
	}

	phi1 := lat1 * math.Pi / 180
	phi2 := lat2 * math.Pi / 180
	deltaPhi := (lat2 - lat1) * math.Pi / 180
	deltaLambda := (lng2 - lng1) * math.Pi / 180

	a := math.Sin(deltaPhi/2)*math.Sin(deltaPhi/2) +
		math.Cos(phi1)*math.Cos(phi2)*math.Sin(deltaLambda/2)*math.Sin(deltaLambda/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))

	return earthRadiusMeters * c
}

// MetersToMiles converts meters to miles.
func MetersToMiles(meters float64) float64 {
	return meters * metersPerMile
}

// Accumulator tracks a running great-circle distance over a sequence
// of valid GPS fixes, plus the first and last fix seen. The zero value
// is ready to use. Not safe for concurrent use — each decoding pass
// owns its own Accumulator.
type Accumulator struct {
	totalMeters float64
	lastLat     float64
	lastLng     float64
	hasFix      bool
	firstLat    float64
	firstLng    float64
}

// Advance feeds the next valid fix. It returns the distance in meters
// added by this fix: zero for the first fix, the haversine distance
// from the previous fix otherwise.
func (a *Accumulator) Advance(lat, lng float64) float64 {
	if !a.hasFix {
		a.hasFix = true
		a.firstLat, a.firstLng = lat, lng
		a.lastLat, a.lastLng = lat, lng
		return 0
	}

	step := Haversine(a.lastLat, a.lastLng, lat, lng)
	a.totalMeters += step
	a.lastLat, a.lastLng = lat, lng
	return step
}

// HasFix reports whether Advance has been called at least once.
func (a *Accumulator) HasFix() bool { return a.hasFix }

// First returns the first fix fed to the accumulator. Only meaningful
// when HasFix is true.
func (a *Accumulator) First() (lat, lng float64) { return a.firstLat, a.firstLng }

// Last returns the most recent fix. Only meaningful when HasFix is
// true.
func (a *Accumulator) Last() (lat, lng float64) { return a.lastLat, a.lastLng }

// Meters returns the total accumulated distance in meters.
func (a *Accumulator) Meters() float64 { return a.totalMeters }

// Miles returns the total accumulated distance in miles, the unit
// persisted on Route and Segment rows.
func (a *Accumulator) Miles() float64 { return MetersToMiles(a.totalMeters) }
