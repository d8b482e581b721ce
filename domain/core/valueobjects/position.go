package valueobjects

import (
	"math"
	"math/rand/v2"

	pkgerrors "mindmap-backend/pkg/errors"
)

// Position is a value object representing node coordinates on the canvas.
// The layout collaborator owns positions; the domain only assigns
// provisional ones on creation.
type Position struct {
	x float64
	y float64
}

// NewPosition creates a position with validation
func NewPosition(x, y float64) (Position, error) {
	if !isValidCoordinate(x) || !isValidCoordinate(y) {
		return Position{}, pkgerrors.NewValidationError("invalid coordinates: must be finite numbers")
	}
	return Position{x: x, y: y}, nil
}

// Origin is the canvas center
func Origin() Position {
	return Position{}
}

// RandomPositionAround places a point uniformly inside a disc of the given radius
func RandomPositionAround(center Position, radius float64) Position {
	if radius <= 0 {
		return center
	}
	angle := rand.Float64() * 2 * math.Pi
	dist := math.Sqrt(rand.Float64()) * radius
	return Position{
		x: center.x + dist*math.Cos(angle),
		y: center.y + dist*math.Sin(angle),
	}
}

// X returns the X coordinate
func (p Position) X() float64 {
	return p.x
}

// Y returns the Y coordinate
func (p Position) Y() float64 {
	return p.y
}

// Translate moves the position by the given offsets
func (p Position) Translate(dx, dy float64) Position {
	return Position{x: p.x + dx, y: p.y + dy}
}

// DistanceTo calculates the Euclidean distance to another position
func (p Position) DistanceTo(other Position) float64 {
	dx := p.x - other.x
	dy := p.y - other.y
	return math.Sqrt(dx*dx + dy*dy)
}

// Equals checks if two positions are equal
func (p Position) Equals(other Position) bool {
	const epsilon = 1e-9
	return math.Abs(p.x-other.x) < epsilon &&
		math.Abs(p.y-other.y) < epsilon
}

func isValidCoordinate(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
