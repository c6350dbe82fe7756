package domain

import "time"

type AppointmentStatus string

const (
	AppointmentStatusPending   AppointmentStatus = "pending"
	AppointmentStatusAccepted  AppointmentStatus = "accepted"
	AppointmentStatusRejected  AppointmentStatus = "rejected"
	AppointmentStatusCompleted AppointmentStatus = "completed"
	AppointmentStatusCancelled AppointmentStatus = "cancelled"
)

type AppointmentResult string

const (
	AppointmentResultPass AppointmentResult = "pass"
	AppointmentResultFail AppointmentResult = "fail"
)

// appointmentTransitions 描述考核预约的状态机：
// pending -> accepted / rejected / cancelled
// accepted -> completed / cancelled
// rejected、completed、cancelled 均为终态
var appointmentTransitions = map[AppointmentStatus][]AppointmentStatus{
	AppointmentStatusPending:  {AppointmentStatusAccepted, AppointmentStatusRejected, AppointmentStatusCancelled},
	AppointmentStatusAccepted: {AppointmentStatusCompleted, AppointmentStatusCancelled},
}

func (s AppointmentStatus) CanTransitionTo(to AppointmentStatus) bool {
	for _, next := range appointmentTransitions[s] {
		if next == to {
			return true
		}
	}
	return false
}

// IsTerminal 表示该状态下预约不再占用任何时段
func (s AppointmentStatus) IsTerminal() bool {
	return len(appointmentTransitions[s]) == 0
}

type Appointment struct {
	ID        int64 `json:"id"`
	UserID    int64 `json:"userID"`
	MachineID int64 `json:"machineID"`
	ManagerID int64 `json:"managerID"`
	RuleID    int64 `json:"ruleID"`
	// 绝对 UTC 时刻，EndTime - StartTime 恒等于设备的考核时长
	StartTime          time.Time         `json:"startTime"`
	EndTime            time.Time         `json:"endTime"`
	Status             AppointmentStatus `json:"status"`
	Notes              string            `json:"notes"`
	DecisionReason     string            `json:"decisionReason"`
	Result             AppointmentResult `json:"result,omitempty"`
	ResultNotes        string            `json:"resultNotes"`
	CancellationReason string            `json:"cancellationReason"`
	ReviewedBy         *int64            `json:"reviewedBy"`
	ReviewedAt         *time.Time        `json:"reviewedAt"`
	ResultedBy         *int64            `json:"resultedBy"`
	ResultedAt         *time.Time        `json:"resultedAt"`
	CreatedAt          time.Time         `json:"createdAt"`
	Version            int32             `json:"-"`
}

type AppointmentEventType string

const (
	AppointmentEventRequested AppointmentEventType = "requested"
	AppointmentEventAccepted  AppointmentEventType = "accepted"
	AppointmentEventRejected  AppointmentEventType = "rejected"
	AppointmentEventCancelled AppointmentEventType = "cancelled"
	AppointmentEventPassed    AppointmentEventType = "passed"
	AppointmentEventFailed    AppointmentEventType = "failed"
)

// AppointmentEvent 是只追加的审计记录，每次状态转移写入一行，永不修改或删除
type AppointmentEvent struct {
	ID            int64                `json:"id"`
	AppointmentID int64                `json:"appointmentID"`
	EventType     AppointmentEventType `json:"eventType"`
	ActorID       int64                `json:"actorID"`
	ActorRole     Role                 `json:"actorRole"`
	FromStatus    AppointmentStatus    `json:"fromStatus"`
	ToStatus      AppointmentStatus    `json:"toStatus"`
	Metadata      string               `json:"metadata"`
	CreatedAt     time.Time            `json:"createdAt"`
}
