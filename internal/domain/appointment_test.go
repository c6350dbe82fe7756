package domain

import "testing"

func TestAppointmentStatusTransitions(t *testing.T) {
	allStatuses := []AppointmentStatus{
		AppointmentStatusPending,
		AppointmentStatusAccepted,
		AppointmentStatusRejected,
		AppointmentStatusCompleted,
		AppointmentStatusCancelled,
	}

	allowed := map[AppointmentStatus]map[AppointmentStatus]bool{
		AppointmentStatusPending: {
			AppointmentStatusAccepted:  true,
			AppointmentStatusRejected:  true,
			AppointmentStatusCancelled: true,
		},
		AppointmentStatusAccepted: {
			AppointmentStatusCompleted: true,
			AppointmentStatusCancelled: true,
		},
	}

	for _, from := range allStatuses {
		for _, to := range allStatuses {
			want := allowed[from][to]
			if got := from.CanTransitionTo(to); got != want {
				t.Errorf("%s -> %s = %v, 期望 %v", from, to, got, want)
			}
		}
	}
}

func TestAppointmentTerminalStatuses(t *testing.T) {
	terminal := []AppointmentStatus{
		AppointmentStatusRejected,
		AppointmentStatusCompleted,
		AppointmentStatusCancelled,
	}

	for _, status := range terminal {
		if !status.IsTerminal() {
			t.Errorf("%s 应当是终态", status)
		}
	}

	for _, status := range []AppointmentStatus{AppointmentStatusPending, AppointmentStatusAccepted} {
		if status.IsTerminal() {
			t.Errorf("%s 不应当是终态", status)
		}
	}
}

func TestReservationStatusTransitions(t *testing.T) {
	allStatuses := []ReservationStatus{
		ReservationStatusPending,
		ReservationStatusApproved,
		ReservationStatusRejected,
		ReservationStatusCancelled,
		ReservationStatusConfirmed,
		ReservationStatusCompleted,
	}

	// 只有待审核的机时预约允许流转，审核决定一经做出即为最终结果
	for _, from := range allStatuses {
		for _, to := range allStatuses {
			want := from == ReservationStatusPending &&
				(to == ReservationStatusApproved || to == ReservationStatusRejected || to == ReservationStatusCancelled)
			if got := from.CanTransitionTo(to); got != want {
				t.Errorf("%s -> %s = %v, 期望 %v", from, to, got, want)
			}
		}
	}

	for _, status := range allStatuses {
		if status == ReservationStatusPending {
			continue
		}
		if !status.IsTerminal() {
			t.Errorf("%s 应当是终态", status)
		}
	}
}
