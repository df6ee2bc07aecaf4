package address

import (
	"context"

	"github.com/hibiken/asynq"
	"github.com/rs/zerolog"
)

// TaskRepairSweep is the asynq task type for the periodic invariant sweep.
const TaskRepairSweep = "address:repair_sweep"

// NewRepairSweepTask builds the periodic sweep task.
func NewRepairSweepTask() *asynq.Task {
	return asynq.NewTask(TaskRepairSweep, nil)
}

// RepairSweepHandler adapts the service sweep into an asynq handler.
type RepairSweepHandler struct {
	Svc   *Service
	Batch int
	Log   zerolog.Logger
}

// ProcessTask runs one sweep over customers whose address books violate the
// default invariant.
func (h RepairSweepHandler) ProcessTask(ctx context.Context, _ *asynq.Task) error {
	repaired, err := h.Svc.RepairSweep(ctx, h.Batch)
	if err != nil {
		return err
	}
	if repaired > 0 {
		h.Log.Info().Int("repaired", repaired).Msg("address repair sweep completed")
	}
	return nil
}
