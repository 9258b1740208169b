package api

// Route parameter key names
const (
	ParamAgentID string = "agent_id"
	ParamTaskID  string = "task_id"
)
