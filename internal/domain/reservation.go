package domain

import "time"

type ReservationStatus string

const (
	ReservationStatusPending   ReservationStatus = "pending"
	ReservationStatusApproved  ReservationStatus = "approved"
	ReservationStatusRejected  ReservationStatus = "rejected"
	ReservationStatusCancelled ReservationStatus = "cancelled"
	ReservationStatusConfirmed ReservationStatus = "confirmed"
	ReservationStatusCompleted ReservationStatus = "completed"
)

// reservationTransitions 描述机时预约的状态机，管理员审核一经做出即为最终决定
var reservationTransitions = map[ReservationStatus][]ReservationStatus{
	ReservationStatusPending: {ReservationStatusApproved, ReservationStatusRejected, ReservationStatusCancelled},
}

func (s ReservationStatus) CanTransitionTo(to ReservationStatus) bool {
	for _, next := range reservationTransitions[s] {
		if next == to {
			return true
		}
	}
	return false
}

func (s ReservationStatus) IsTerminal() bool {
	return len(reservationTransitions[s]) == 0
}

// Reservation 是已取得设备使用资格的会员对设备机时的直接预约
type Reservation struct {
	ID             int64             `json:"id"`
	UserID         int64             `json:"userID"`
	MachineID      int64             `json:"machineID"`
	StartTime      time.Time         `json:"startTime"`
	EndTime        time.Time         `json:"endTime"`
	Status         ReservationStatus `json:"status"`
	Notes          string            `json:"notes"`
	DecisionReason string            `json:"decisionReason"`
	ReviewNotes    string            `json:"reviewNotes"`
	ReviewedBy     *int64            `json:"reviewedBy"`
	ReviewedAt     *time.Time        `json:"reviewedAt"`
	CreatedAt      time.Time         `json:"createdAt"`
	Version        int32             `json:"-"`
}
