package models

import (
	"encoding/json"
	"fmt"
)

// PointsBalance is the canonical points snapshot for a bidder.
// Invariant: Total == Available + Reserved.
type PointsBalance struct {
	Total     int64 `json:"total"`
	Available int64 `json:"available"`
	Reserved  int64 `json:"reserved"`
}

// CanCover reports whether the available portion covers the given price.
func (p PointsBalance) CanCover(price int64) bool {
	return p.Available >= price
}

// rawPoints accepts both field-naming dialects the endpoints use.
// The bid endpoints answer with total/available/reserved, the points
// endpoint with total_points/available_points/reserved_points.
type rawPoints struct {
	Total           *int64 `json:"total"`
	Available       *int64 `json:"available"`
	Reserved        *int64 `json:"reserved"`
	TotalPoints     *int64 `json:"total_points"`
	AvailablePoints *int64 `json:"available_points"`
	ReservedPoints  *int64 `json:"reserved_points"`
}

// NormalizePoints parses a balance payload of either dialect into the
// canonical shape. Missing fields are derived from the present ones, and
// the result always satisfies Total == Available + Reserved; when a payload
// disagrees with itself, Available and Reserved win and Total is recomputed.
func NormalizePoints(data []byte) (PointsBalance, error) {
	var raw rawPoints
	if err := json.Unmarshal(data, &raw); err != nil {
		return PointsBalance{}, fmt.Errorf("parse points payload: %w", err)
	}
	return normalize(raw), nil
}

func normalize(raw rawPoints) PointsBalance {
	total := coalesce(raw.Total, raw.TotalPoints)
	available := coalesce(raw.Available, raw.AvailablePoints)
	reserved := coalesce(raw.Reserved, raw.ReservedPoints)

	var p PointsBalance
	switch {
	case available != nil && reserved != nil:
		p.Available = *available
		p.Reserved = *reserved
	case total != nil && available != nil:
		p.Available = *available
		p.Reserved = *total - *available
	case total != nil && reserved != nil:
		p.Reserved = *reserved
		p.Available = *total - *reserved
	case available != nil:
		p.Available = *available
	case reserved != nil:
		p.Reserved = *reserved
	case total != nil:
		p.Available = *total
	}
	if p.Available < 0 {
		p.Available = 0
	}
	if p.Reserved < 0 {
		p.Reserved = 0
	}
	p.Total = p.Available + p.Reserved
	return p
}

func coalesce(values ...*int64) *int64 {
	for _, v := range values {
		if v != nil {
			return v
		}
	}
	return nil
}
