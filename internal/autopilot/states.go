package autopilot

// State is the workflow state machine position
type State string

const (
	StateIdle            State = "IDLE"
	StateScanning        State = "SCANNING"
	StateCircuitBroken   State = "CIRCUIT_BROKEN"
	StateNoSlots         State = "NO_SLOTS"
	StateNoOpportunities State = "NO_OPPORTUNITIES"
	StateSignaling       State = "SIGNALING"
	StateValidating      State = "VALIDATING"
	StateExecuting       State = "EXECUTING"
	StateMonitoring      State = "MONITORING"
	StatePaused          State = "PAUSED"
	StateEmergencyStop   State = "EMERGENCY_STOP"
)

// Status is the outcome class of one workflow invocation
type Status string

const (
	StatusSuccess         Status = "success"
	StatusPaused          Status = "paused"
	StatusCircuitBroken   Status = "circuit_breaker_triggered"
	StatusNoSlots         Status = "no_slots"
	StatusNoOpportunities Status = "no_opportunities"
	StatusHold            Status = "hold"
	StatusRejected        Status = "rejected"
	StatusPartial         Status = "partial"
	StatusError           Status = "error"
)

// Workflow names, used for logs, metrics and last-result tracking
const (
	WorkflowScanAndTrade   = "scan_and_trade"
	WorkflowMonitorAndExit = "monitor_and_exit"
	WorkflowManualTrade    = "manual_trade"
	WorkflowEmergencyStop  = "emergency_stop"
	WorkflowResume         = "resume"
)
