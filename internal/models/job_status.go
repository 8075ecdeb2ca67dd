package models

/*
Task and operation constants shared by the API, the worker and the usage
ledger.
*/

// Async job states as reported by the API.
const (
	JobStatusPending   = "pending"
	JobStatusActive    = "active"
	JobStatusRetrying  = "retrying"
	JobStatusCompleted = "completed"
	JobStatusFailed    = "failed"
)

// Usage ledger operations
const (
	OperationClassification = "classification"
	OperationExtraction     = "extraction"
	OperationReply          = "reply"
)
