package config

const (
	// QueueGeneration is the worker-pool queue for blog draft generation jobs.
	QueueGeneration = "content-generation"

	// QueuePublishing is the worker-pool queue for WordPress publishing jobs.
	QueuePublishing = "publishing"

	// TopicJobCompleted is the NSQ topic for completed-job lifecycle events.
	TopicJobCompleted = "jobs.completed"

	// TopicJobFailed is the NSQ topic for failed-job lifecycle events.
	TopicJobFailed = "jobs.failed"
)
