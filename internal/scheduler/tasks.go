package scheduler

import (
	"encoding/json"

	"github.com/hibiken/asynq"
)

const TaskReminderDue = "pipeline.reminder.due"

type ReminderDuePayload struct {
	ReminderID string `json:"reminderId"`
	LeadID     string `json:"leadId"`
}

func NewReminderDueTask(payload ReminderDuePayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskReminderDue, data), nil
}

func ParseReminderDuePayload(task *asynq.Task) (ReminderDuePayload, error) {
	var payload ReminderDuePayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return ReminderDuePayload{}, err
	}
	return payload, nil
}
