package scheduler

import (
	"encoding/json"

	"github.com/hibiken/asynq"
)

const TaskScrapeRunWatch = "scrape.run.watch"

type ScrapeRunWatchPayload struct {
	RunID   string `json:"runId"`
	OwnerID string `json:"ownerId"`
}

func NewScrapeRunWatchTask(payload ScrapeRunWatchPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskScrapeRunWatch, data), nil
}

func ParseScrapeRunWatchPayload(task *asynq.Task) (ScrapeRunWatchPayload, error) {
	var payload ScrapeRunWatchPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return ScrapeRunWatchPayload{}, err
	}
	return payload, nil
}
