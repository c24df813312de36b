package tracking

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
)

// ModesUtil answers Mode-S address questions, including membership in
// known military allocation ranges (mil_ranges.json, tar1090-db format).
type ModesUtil struct {
	ranges [][2]uint32
}

// NewModesUtil loads military ranges from the given file
func NewModesUtil(path string) (*ModesUtil, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read military ranges: %w", err)
	}

	var payload struct {
		Military [][2]string `json:"military"`
	}
	if err := json.Unmarshal(data, &payload); err != nil {
		return nil, fmt.Errorf("failed to parse military ranges: %w", err)
	}

	u := &ModesUtil{ranges: make([][2]uint32, 0, len(payload.Military))}
	for _, pair := range payload.Military {
		start, err := strconv.ParseUint(pair[0], 16, 32)
		if err != nil {
			return nil, fmt.Errorf("invalid range start %q: %w", pair[0], err)
		}
		end, err := strconv.ParseUint(pair[1], 16, 32)
		if err != nil {
			return nil, fmt.Errorf("invalid range end %q: %w", pair[1], err)
		}
		u.ranges = append(u.ranges, [2]uint32{uint32(start), uint32(end)})
	}

	return u, nil
}

// IsIcao24Addr reports whether s is a well-formed 6-digit hex address
func IsIcao24Addr(s string) bool {
	if len(s) != 6 {
		return false
	}
	_, err := strconv.ParseUint(s, 16, 32)
	return err == nil
}

// IsMilitary reports whether the address falls within a known military range
func (u *ModesUtil) IsMilitary(icao24 string) bool {
	n, err := strconv.ParseUint(icao24, 16, 32)
	if err != nil {
		return false
	}
	addr := uint32(n)
	for _, r := range u.ranges {
		if r[0] <= addr && addr <= r[1] {
			return true
		}
	}
	return false
}
