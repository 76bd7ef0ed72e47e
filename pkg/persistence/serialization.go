package persistence

import (
	"encoding/json"
	"fmt"
)

// MarshalSaleState serializes a SaleState snapshot to JSON bytes.
func MarshalSaleState(state *SaleState) ([]byte, error) {
	if state == nil {
		return nil, fmt.Errorf("cannot marshal nil SaleState")
	}

	data, err := json.Marshal(state)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal SaleState to JSON: %w", err)
	}

	return data, nil
}

// UnmarshalSaleState deserializes a SaleState snapshot from JSON bytes.
func UnmarshalSaleState(data []byte) (*SaleState, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("cannot unmarshal empty data")
	}

	var state SaleState
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, fmt.Errorf("failed to unmarshal JSON to SaleState: %w", err)
	}

	if state.PublicMinted == nil {
		state.PublicMinted = make(map[string]uint64)
	}
	if state.WhitelistMinted == nil {
		state.WhitelistMinted = make(map[string]uint64)
	}

	return &state, nil
}
