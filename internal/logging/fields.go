package logging

// Standardized attribute keys shared across components.
const (
	FieldComponent = "component"
	FieldUserID    = "user_id"
	FieldSessionID = "session_id"
	FieldPlan      = "plan"
	FieldStatus    = "status"
	FieldGenre     = "genre"
)
