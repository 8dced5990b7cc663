package email

// TaskTypeDeliver is the asynq task type for notification delivery.
// Declared here rather than in the tasks package so enqueueing services
// do not depend on the task processor.
const TaskTypeDeliver = "email:deliver"

// TaskPayload is the JSON payload of an email delivery task.
type TaskPayload struct {
	To   string       `json:"to"`
	Kind Kind         `json:"kind"`
	Data TemplateData `json:"data"`
}
