package jobs

import (
	"encoding/json"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskCompensationRatio recomputes the rolling compensation ratio of the
	// pressing sites from recently finished arrival lines.
	TaskCompensationRatio = "mill:compensation_ratio"
)

// CompensationRatioPayload selects the warehouses to sweep. A zero
// WarehouseID means every site.
type CompensationRatioPayload struct {
	WarehouseID int64 `json:"warehouse_id"`
}

// NewCompensationRatioTask constructs an Asynq task.
func NewCompensationRatioTask(payload CompensationRatioPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskCompensationRatio, data, asynq.Queue(QueueDefault)), nil
}
