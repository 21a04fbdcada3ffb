// Package indicator provides the pure numerical kernels (C1) used by the
// indicator engine: RSI, ATR, SMA, WMA, HMA, EMA, MACD and slope-segment
// detection. Every function here is side-effect-free, deterministic given
// the same input on the same platform, and operates over dense contiguous
// []float64 buffers supplied by the candle store — none of them touch
// model.Candle or any store/connector type directly, so they can be unit
// tested in isolation and reused by any caller that can assemble the right
// slices.
package indicator

import (
	"fmt"

	"marketcore/internal/model"
)

// insufficientData wraps model.ErrInsufficientData with the kernel name and
// the shortfall, matching the error-wrapping convention used throughout the
// rest of the module (see internal/model/errors.go).
func insufficientData(kernel string, have, need int) error {
	return fmt.Errorf("indicator: %s: %w (have %d, need > %d)", kernel, model.ErrInsufficientData, have, need)
}
