package logging

const (
	// FieldComponent is the standardized structured logging key for component names.
	FieldComponent = "component"
	// FieldEventType classifies a record for filtering (e.g. ipc_transport_error).
	FieldEventType = "event_type"
	// FieldErrorHint carries the operator's next step for warnings and errors.
	FieldErrorHint = "error_hint"
	// FieldImpact is the standardized key for user-facing consequence of a warning.
	FieldImpact = "impact"
	// FieldRunID identifies one module host run.
	FieldRunID = "run_id"
	// FieldModule names the loaded module emitting the record.
	FieldModule = "module"
	// FieldMessageType is the envelope type tag of an IPC message.
	FieldMessageType = "message_type"
	// FieldState is the channel connection state.
	FieldState = "state"
	// FieldEndpoint is the daemon endpoint path.
	FieldEndpoint = "endpoint"
	// FieldCapability names a registry capability.
	FieldCapability = "capability"
)
