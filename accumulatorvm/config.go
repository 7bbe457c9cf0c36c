// (c) 2023, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package accumulatorvm

import (
	"encoding/json"
	"fmt"

	"github.com/ava-labs/accumulatorvm/amt"
)

const (
	defaultMaxRangeCount = 1024
)

// Config is the JSON configuration of the VM.
type Config struct {
	// BitWidth is used for accumulators created without a bit width.
	BitWidth uint8 `json:"bitWidth"`
	// MaxRangeCount bounds the entries a single getRange request may ask for.
	// It is checked before the actor runs. The actor separately rejects with
	// accumulator.ErrRangeTooLarge any range whose reply would exceed
	// accumulator.MaxMessageSize, so a range within MaxRangeCount can still
	// fail when its payloads are large. A range of one entry always fits.
	MaxRangeCount uint64 `json:"maxRangeCount"`
}

// DefaultConfig returns the configuration used for unset fields.
func DefaultConfig() Config {
	return Config{
		BitWidth:      amt.DefaultBitWidth,
		MaxRangeCount: defaultMaxRangeCount,
	}
}

// ParseConfig parses [configBytes] on top of the defaults. Empty bytes give
// the defaults.
func ParseConfig(configBytes []byte) (Config, error) {
	config := DefaultConfig()
	if len(configBytes) == 0 {
		return config, nil
	}
	if err := json.Unmarshal(configBytes, &config); err != nil {
		return Config{}, fmt.Errorf("failed to parse config: %w", err)
	}
	return config, config.Verify()
}

// Verify checks that the configuration is usable.
func (c Config) Verify() error {
	if c.BitWidth < amt.MinBitWidth || c.BitWidth > amt.MaxBitWidth {
		return fmt.Errorf("%w: %d", amt.ErrInvalidBitWidth, c.BitWidth)
	}
	if c.MaxRangeCount == 0 {
		return errZeroMaxRange
	}
	return nil
}
