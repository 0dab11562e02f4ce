package queue

import "encoding/json"

// EventPublisher publishes job lifecycle events. Satisfied by *nsq.Producer.
type EventPublisher interface {
	Publish(topic string, body []byte) error
}

// JobEvent is the body published to the lifecycle topics when a job reaches
// a terminal state. Payload and Result are carried so consumers can act
// without a store round-trip.
type JobEvent struct {
	JobID         string          `json:"job_id"`
	Queue         string          `json:"queue"`
	State         State           `json:"state"`
	Payload       json.RawMessage `json:"payload,omitempty"`
	Result        json.RawMessage `json:"result,omitempty"`
	FailureReason string          `json:"failure_reason,omitempty"`
}
