package logger

// Fields is an alias for map[string]interface{} for convenience.
type Fields map[string]interface{}

// Standard tracing fields, propagated through the call chain via context.
const (
	// FieldJobID is the ingestion job ID
	FieldJobID = "job_id"

	// FieldDataSourceID is the data source ID
	FieldDataSourceID = "data_source_id"

	// FieldCorrelationID is the queue message correlation ID
	FieldCorrelationID = "correlation_id"

	// FieldComponent is the component/module name
	FieldComponent = "component"

	// FieldSourceType is the source type discriminator (csv, sql, api)
	FieldSourceType = "source_type"

	// FieldRequestID is the HTTP request ID
	FieldRequestID = "request_id"
)

// Standard metric fields, attached at the log site.
const (
	// FieldDurationMs is the execution duration in milliseconds
	FieldDurationMs = "duration_ms"

	// FieldCount is a generic count field
	FieldCount = "count"

	// FieldStatus is the operation status
	FieldStatus = "status"
)
