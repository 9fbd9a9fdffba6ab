package sim

import (
	"errors"
	"fmt"
)

const (
	DefaultArenaWidth  = 800
	DefaultArenaHeight = 600
	DefaultCellSize    = 50.0 // partition cell edge in world units
	DefaultLives       = 3

	// TickMillis is the nominal step length the motion constants are tuned for.
	TickMillis = 20

	MaxMultiplier = 10
	KillsPerTier  = 100 // scored kills per multiplier tier
)

// ErrInvalidConfig is returned by Validate for unusable settings.
var ErrInvalidConfig = errors.New("invalid sim config")

// Config holds the settings fixed for the lifetime of a Game.
type Config struct {
	Width    int     // arena width, world units
	Height   int     // arena height, world units
	CellSize float64 // spatial partition cell size
	Lives    int     // spare lives at the start of a run
	Seed     uint64  // 0 picks a random seed
	Waves    bool    // run the built-in wave spawner
}

// DefaultConfig returns the classic 800x600 arena with waves enabled.
func DefaultConfig() Config {
	return Config{
		Width:    DefaultArenaWidth,
		Height:   DefaultArenaHeight,
		CellSize: DefaultCellSize,
		Lives:    DefaultLives,
		Waves:    true,
	}
}

// Validate reports the first unusable setting.
func (c Config) Validate() error {
	if c.Width <= 0 || c.Height <= 0 {
		return fmt.Errorf("arena %dx%d: %w", c.Width, c.Height, ErrInvalidConfig)
	}
	if c.CellSize <= 0 {
		return fmt.Errorf("cell size %v: %w", c.CellSize, ErrInvalidConfig)
	}
	if c.Lives < 0 {
		return fmt.Errorf("lives %d: %w", c.Lives, ErrInvalidConfig)
	}
	return nil
}
