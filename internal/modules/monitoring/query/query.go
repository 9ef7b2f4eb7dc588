// Package query turns a reading filter into a list of predicates that every
// store renders the same way. All predicates are AND-ed; an absent option adds
// nothing to the list.
package query

import (
	"fmt"
	"strings"
	"time"

	"tempmon-server/internal/modules/monitoring/types"
)

// Limit defaults and ceilings. Latest queries back the live view and stay small.
const (
	LatestDefaultLimit  = 10
	LatestMaxLimit      = 100
	HistoryDefaultLimit = 100
	HistoryMaxLimit     = 1000
)

// Column names shared by every store.
const (
	ColumnDeviceID  = "device_id"
	ColumnTimestamp = "recorded_at"
)

type Op string

const (
	OpEq  Op = "="
	OpGte Op = ">="
	OpLte Op = "<="
)

// Predicate is one "column op value" condition.
type Predicate struct {
	Column string
	Op     Op
	Value  any
}

// SQL renders the predicate with a single positional placeholder.
func (p Predicate) SQL() string {
	return fmt.Sprintf("%s %s ?", p.Column, p.Op)
}

// Predicates builds the condition list for f. Time values are passed through
// encodeTime so each store can choose its own column representation.
func Predicates(f types.Filter, encodeTime func(time.Time) any) []Predicate {
	if encodeTime == nil {
		encodeTime = func(t time.Time) any { return t.UTC() }
	}
	var preds []Predicate
	if f.DeviceID != "" {
		preds = append(preds, Predicate{Column: ColumnDeviceID, Op: OpEq, Value: f.DeviceID})
	}
	if f.StartTime != nil {
		preds = append(preds, Predicate{Column: ColumnTimestamp, Op: OpGte, Value: encodeTime(*f.StartTime)})
	}
	if f.EndTime != nil {
		preds = append(preds, Predicate{Column: ColumnTimestamp, Op: OpLte, Value: encodeTime(*f.EndTime)})
	}
	return preds
}

// Where folds preds into a WHERE clause (including the keyword) and its args.
// An empty list yields an empty clause.
func Where(preds []Predicate) (string, []any) {
	if len(preds) == 0 {
		return "", nil
	}
	parts := make([]string, 0, len(preds))
	args := make([]any, 0, len(preds))
	for _, p := range preds {
		parts = append(parts, p.SQL())
		args = append(args, p.Value)
	}
	return "WHERE " + strings.Join(parts, " AND "), args
}

// ClampLimit applies the default for an unset limit and caps it at ceiling.
// Negative limits are rejected.
func ClampLimit(limit, def, ceiling int) (int, error) {
	switch {
	case limit < 0:
		return 0, fmt.Errorf("%w: limit must be > 0", types.ErrValidation)
	case limit == 0:
		return def, nil
	case limit > ceiling:
		return ceiling, nil
	default:
		return limit, nil
	}
}

// ValidateRange rejects a window whose start lies after its end.
func ValidateRange(start, end *time.Time) error {
	if start != nil && end != nil && start.After(*end) {
		return fmt.Errorf("%w: startTime must be <= endTime", types.ErrValidation)
	}
	return nil
}
