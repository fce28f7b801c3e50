package services

import (
	"context"

	"github.com/lym-afla/Encar/utils"
)

// ObservationStore is the slice of the persistent store the detector needs.
type ObservationStore interface {
	GetObservedIDs(ctx context.Context) ([]string, error)
	SetObservedIDs(ctx context.Context, ids []string) error
}

// ChangeDetector produces the "new since last cycle" set. Its memory is
// exactly one cycle deep: an identifier that dropped out and reappears is
// surfaced as new again, so relisted vehicles are never permanently
// suppressed.
type ChangeDetector struct {
	store  ObservationStore
	logger *utils.Logger
}

// NewChangeDetector creates a detector backed by the given store.
func NewChangeDetector(store ObservationStore, logger *utils.Logger) *ChangeDetector {
	return &ChangeDetector{store: store, logger: logger}
}

// Diff returns currentIDs minus the previously observed set and persists
// currentIDs as the observation state for the next cycle. If persisting
// fails, no "new" set is returned — alerting on an un-recorded state would
// duplicate alerts next cycle.
func (d *ChangeDetector) Diff(ctx context.Context, currentIDs []string) ([]string, error) {
	previous, err := d.store.GetObservedIDs(ctx)
	if err != nil {
		return nil, err
	}

	prevSet := utils.NewIDSetFrom(previous)
	var fresh []string
	for _, id := range currentIDs {
		if !prevSet.Contains(id) {
			fresh = append(fresh, id)
		}
	}

	if err := d.store.SetObservedIDs(ctx, currentIDs); err != nil {
		return nil, err
	}

	d.logger.Debug("[detector] %d current, %d previously observed, %d new",
		len(currentIDs), len(previous), len(fresh))
	return fresh, nil
}
