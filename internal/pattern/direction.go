package pattern

import "github.com/rewired-gh/polypattern/internal/models"

// DefaultDirectionThreshold is the absolute price delta below which a move
// counts as FLAT.
const DefaultDirectionThreshold = 0.005

// GetDirection classifies a signed price delta as UP, DOWN or FLAT.
func GetDirection(delta, threshold float64) models.Direction {
	switch {
	case delta > threshold:
		return models.DirectionUp
	case delta < -threshold:
		return models.DirectionDown
	default:
		return models.DirectionFlat
	}
}
