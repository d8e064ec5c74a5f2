package extract

import (
	"fmt"
	"math"
)

const (
	// DefaultMaxResolution caps the longer side of the planned geometry.
	DefaultMaxResolution = 2000
	// DefaultSamplingRate is the frames-per-second rate used to derive a
	// frame budget from duration.
	DefaultSamplingRate = 60
	// UnboundedBudget is used when no duration is known and no explicit
	// budget was requested.
	UnboundedBudget = math.MaxInt
)

// PlanGeometry computes the output size for a native width and height.
//
// When either side exceeds maxResolution the larger side is capped and the
// other scaled to preserve the aspect ratio. Rotations of 90 and 270 produce
// a portrait plan whose height is the larger dimension.
func PlanGeometry(width, height, rotation, maxResolution int) (GeometryPlan, error) {
	if width <= 0 || height <= 0 {
		return GeometryPlan{}, fmt.Errorf("%w: native size %dx%d", ErrInvalidTrackFormat, width, height)
	}
	if maxResolution <= 0 {
		maxResolution = DefaultMaxResolution
	}

	if width > maxResolution || height > maxResolution {
		ratio := float64(height) / float64(width)
		if height > width {
			height = maxResolution
			width = int(float64(height) / ratio)
		} else {
			width = maxResolution
			height = int(ratio * float64(width))
		}
		if width < 1 {
			width = 1
		}
		if height < 1 {
			height = 1
		}
	}

	rotation = NormalizeRotation(rotation)
	portrait := rotation == 90 || rotation == 270
	if portrait {
		return GeometryPlan{
			Width:    min(width, height),
			Height:   max(width, height),
			Portrait: true,
		}, nil
	}
	return GeometryPlan{Width: width, Height: height}, nil
}

// FrameBudget returns the number of frames eligible for delivery. A positive
// override wins; otherwise the budget is ceil(rate * duration / 1s). Without
// a duration the budget is unbounded.
func FrameBudget(durationMillis int64, samplingRate, override int) int {
	if override > 0 {
		return override
	}
	if durationMillis <= 0 {
		return UnboundedBudget
	}
	if samplingRate <= 0 {
		samplingRate = DefaultSamplingRate
	}
	product := int64(samplingRate) * durationMillis
	budget := product / 1000
	if product%1000 != 0 {
		budget++
	}
	if budget > int64(UnboundedBudget) {
		return UnboundedBudget
	}
	return int(budget)
}
