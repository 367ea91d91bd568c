package domain

import (
	"math"
	"time"

	"github.com/pkg/errors"
)

// Snapshot is one persisted indicator record for a (kind, symbol) pair.
// The indicator set differs per kind, so values travel as a flat map the
// way the view layer renders them; Validate covers the shared constraints.
type Snapshot struct {
	Symbol         string             `json:"symbol" bson:"symbol"`
	Kind           string             `json:"kind" bson:"kind"`
	Indicators     map[string]float64 `json:"indicators" bson:"indicators"`
	CurrentPrice   float64            `json:"currentPrice" bson:"currentPrice"`
	ClosePrice     float64            `json:"closePrice" bson:"closePrice"`
	Trend          string             `json:"trend,omitempty" bson:"trend,omitempty"`
	LookbackPeriod string             `json:"lookbackPeriod" bson:"lookbackPeriod"`
	Date           time.Time          `json:"date" bson:"date"`
}

// Validate rejects snapshots that must never reach the store.
func (s Snapshot) Validate() error {
	if s.Symbol == "" {
		return errors.Wrap(ErrValidationFailed, "snapshot has empty symbol")
	}
	if s.Kind == "" {
		return errors.Wrap(ErrValidationFailed, "snapshot has empty kind")
	}
	if s.Date.IsZero() {
		return errors.Wrap(ErrValidationFailed, "snapshot has zero date")
	}
	if len(s.Indicators) == 0 {
		return errors.Wrap(ErrValidationFailed, "snapshot has no indicators")
	}
	for name, v := range s.Indicators {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return errors.Wrapf(
				ErrValidationFailed, "indicator %s is not finite", name,
			)
		}
	}
	if s.CurrentPrice <= 0 {
		return errors.Wrapf(
			ErrValidationFailed,
			"snapshot currentPrice=%v is not positive", s.CurrentPrice,
		)
	}
	return nil
}
