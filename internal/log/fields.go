package log

// FieldComponent tags every line written through Logger with its emitting
// component.
const FieldComponent = "component"

// Component names used by the binaries.
const (
	ComponentApp       = "app"
	ComponentSweeper   = "sweeper"
	ComponentReconcile = "reconcile"
)
