package domain

import "time"

// MonitorAction names the protective action a monitoring cycle applied to a
// position or pending order.
type MonitorAction string

const (
	ActionHold          MonitorAction = "hold"
	ActionBreakeven     MonitorAction = "breakeven"
	ActionTrailProfit   MonitorAction = "trail_profit"
	ActionWarnNearStop  MonitorAction = "warn_near_stop"
	ActionRunnerTrail   MonitorAction = "runner_trail"
	ActionCancelPending MonitorAction = "cancel_pending"
	ActionCloseDetected MonitorAction = "close_detected"
)

// Decision is one appended row of the monitoring history.
type Decision struct {
	ID         int64         `json:"id"`
	RunID      string        `json:"run_id"`
	Instrument string        `json:"instrument"`
	Direction  Direction     `json:"direction"`
	Action     MonitorAction `json:"action"`
	OldStop    float64       `json:"old_stop,omitempty"`
	NewStop    float64       `json:"new_stop,omitempty"`
	Detail     string        `json:"detail,omitempty"`
	CreatedAt  time.Time     `json:"created_at"`
}
