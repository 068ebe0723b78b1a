// Package navigation contains the small amount of geodesy that the
// flight tasks need: distances, bearings, and local offsets on the
// surface of the earth.
package navigation

import (
	"math"
)

// EarthRadius is the equatorial radius used for all calculations,
// in metres.
const EarthRadius = 6378137.0

// Coord is a geographic position in degrees.
type Coord struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// Coord3D is a geographic position with an altitude above the
// ground, in metres.  An altitude of zero means "hold the current
// altitude".
type Coord3D struct {
	Coord
	Alt float64 `json:"alt"`
}

func rad(deg float64) float64 { return deg * math.Pi / 180 }

func deg(rad float64) float64 { return rad * 180 / math.Pi }

// Distance returns the great circle distance between a and b in
// metres, using the haversine formula.
func Distance(a, b Coord) float64 {
	lat1, lat2 := rad(a.Lat), rad(b.Lat)
	dLat := lat2 - lat1
	dLon := rad(b.Lon - a.Lon)

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLon/2)*math.Sin(dLon/2)
	return 2 * EarthRadius * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))
}

// Bearing returns the initial azimuth of the great circle from a to
// b, in degrees clockwise from true north within [0, 360).
func Bearing(a, b Coord) float64 {
	lat1, lat2 := rad(a.Lat), rad(b.Lat)
	dLon := rad(b.Lon - a.Lon)

	y := math.Sin(dLon) * math.Cos(lat2)
	x := math.Cos(lat1)*math.Sin(lat2) - math.Sin(lat1)*math.Cos(lat2)*math.Cos(dLon)
	return math.Mod(deg(math.Atan2(y, x))+360, 360)
}

// NormaliseAngle wraps an angle in degrees into (-180, 180].
func NormaliseAngle(d float64) float64 {
	d = math.Mod(d, 360)
	if d <= -180 {
		d += 360
	} else if d > 180 {
		d -= 360
	}
	return d
}

// Offset moves c by the given number of metres north and east.  It
// uses a flat earth approximation which is fine over the few hundred
// metres a survey pattern covers.
func Offset(c Coord, north, east float64) Coord {
	return Coord{
		Lat: c.Lat + deg(north/EarthRadius),
		Lon: c.Lon + deg(east/(EarthRadius*math.Cos(rad(c.Lat)))),
	}
}

// LocalDelta returns the north and east displacement from a to b in
// metres, the inverse of Offset.
func LocalDelta(a, b Coord) (north, east float64) {
	north = rad(b.Lat-a.Lat) * EarthRadius
	east = rad(b.Lon-a.Lon) * EarthRadius * math.Cos(rad(a.Lat))
	return north, east
}

// LawnmowerPattern generates a boustrophedon sweep over the box with
// opposite corners a and b.  Sweeps run east-west and are at most
// spacing metres apart.  The first sweep runs along the edge through a
// and the last along the far edge through b, so the final gap may be
// narrower than spacing.  The altitude of a is used for every point.
func LawnmowerPattern(a, b Coord3D, spacing float64) []Coord3D {
	if spacing <= 0 {
		return nil
	}

	north, east := LocalDelta(a.Coord, b.Coord)
	gaps := int(math.Ceil(math.Abs(north)/spacing - sweepSlack))
	sweeps := gaps + 1
	step := math.Copysign(spacing, north)

	pts := make([]Coord3D, 0, sweeps*2)
	for i := 0; i < sweeps; i++ {
		y := float64(i) * step
		if i == gaps {
			y = north
		}
		start, end := 0.0, east
		if i%2 == 1 {
			start, end = east, 0.0
		}
		pts = append(pts,
			Coord3D{Coord: Offset(a.Coord, y, start), Alt: a.Alt},
			Coord3D{Coord: Offset(a.Coord, y, end), Alt: a.Alt},
		)
	}
	return pts
}

// sweepSlack absorbs rounding in LocalDelta so that a box an exact
// multiple of the spacing wide does not grow a zero width sweep.
const sweepSlack = 1e-6

// Waypoint is a point to fly through.  When ROI is set the camera
// should be kept on it on the way to the point.
type Waypoint struct {
	Coord3D
	ROI *Coord3D `json:"roi,omitempty"`
}

const (
	// SpiralPointSpacing is roughly how far apart, in metres, the
	// points of a spiral are along its path.
	SpiralPointSpacing = 4.0

	// SpiralClimbRate is the most a spiral climbs in one
	// revolution, in metres.
	SpiralClimbRate = 1.0

	// spiralLookBeyond is how far past the aircraft an outward
	// facing spiral looks.
	spiralLookBeyond = 10.0
)

// OffsetPolar moves c dist metres along the given bearing.
func OffsetPolar(c Coord, dist, bearing float64) Coord {
	return Offset(c, dist*math.Cos(rad(bearing)), dist*math.Sin(rad(bearing)))
}

// SpiralPattern generates a clockwise spiral about centre that starts
// at edge1 and finishes at edge2.  The radius, start angle and
// altitude move smoothly from one edge to the other, and the spiral
// makes enough revolutions to climb no more than SpiralClimbRate per
// turn.  If either edge has no altitude the whole spiral holds
// altitude.
//
// Each point carries a region of interest: the centre when faceOut is
// false, otherwise a point beyond the aircraft on the same radial.
func SpiralPattern(centre, edge1, edge2 Coord3D, faceOut bool) []Waypoint {
	r1, r2 := Distance(centre.Coord, edge1.Coord), Distance(centre.Coord, edge2.Coord)
	a1 := Bearing(centre.Coord, edge1.Coord)
	sweep := NormaliseAngle(Bearing(centre.Coord, edge2.Coord) - a1)

	alt1, alt2 := edge1.Alt, edge2.Alt
	if alt1 == 0 || alt2 == 0 {
		alt1, alt2 = 0, 0
	}
	revs := max(1, int(math.Ceil((alt2-alt1)/SpiralClimbRate-sweepSlack)))

	point := func(r, bearing, alt float64) Waypoint {
		w := Waypoint{Coord3D: Coord3D{Coord: OffsetPolar(centre.Coord, r, bearing), Alt: alt}}
		roi := centre
		if faceOut {
			roi = Coord3D{Coord: OffsetPolar(centre.Coord, r+spiralLookBeyond, bearing), Alt: alt}
		}
		w.ROI = &roi
		return w
	}

	var pts []Waypoint
	for rev := 0; rev < revs; rev++ {
		for turn := 0.0; turn < 360; {
			frac := (float64(rev) + turn/360) / float64(revs)
			r := r1 + (r2-r1)*frac
			pts = append(pts, point(r, a1+sweep*frac+turn, alt1+(alt2-alt1)*frac))
			turn += 360 / max(1, 2*math.Pi*r/SpiralPointSpacing)
		}
	}
	return append(pts, point(r2, a1+sweep, alt2))
}

// InBounds reports whether c lies in the box with the given south
// west and north east corners.
func InBounds(c, sw, ne Coord) bool {
	return c.Lat >= sw.Lat && c.Lat <= ne.Lat && c.Lon >= sw.Lon && c.Lon <= ne.Lon
}
