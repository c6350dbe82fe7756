package handler

import (
	"database/sql"
	"errors"
	"net/http"
	"time"

	"github.com/sysu-ecnc-dev/makerspace-booking/backend/internal/domain"
)

// CreateReservation 处理已取得使用资格的会员对设备机时的直接预约
func (h *Handler) CreateReservation(w http.ResponseWriter, r *http.Request) {
	var req struct {
		MachineID int64     `json:"machineID" validate:"required"`
		StartTime time.Time `json:"startTime" validate:"required"`
		EndTime   time.Time `json:"endTime" validate:"required"`
		Notes     string    `json:"notes"`
	}

	if err := h.readJSON(r, &req); err != nil {
		h.badRequest(w, r, err)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		h.badRequest(w, r, err)
		return
	}

	startTime := req.StartTime.UTC()
	endTime := req.EndTime.UTC()

	if !endTime.After(startTime) {
		h.bookingError(w, r, domain.ErrInvalidTimeRange)
		return
	}
	if !startTime.After(time.Now().UTC()) {
		h.bookingError(w, r, domain.ErrAlreadyStarted)
		return
	}

	machine, err := h.repository.GetMachineByID(req.MachineID)
	if err != nil {
		switch {
		case errors.Is(err, sql.ErrNoRows):
			h.errorResponse(w, r, "设备不存在")
		default:
			h.internalServerError(w, r, err)
		}
		return
	}
	if !machine.IsActive {
		h.bookingError(w, r, domain.ErrInactiveResource)
		return
	}

	myInfo := r.Context().Value(MyInfoCtx).(*domain.User)

	// 机时预约的前提是已经通过考核取得使用资格
	checkedOut, err := h.repository.HasActiveCheckout(myInfo.ID, machine.ID)
	if err != nil {
		h.internalServerError(w, r, err)
		return
	}
	if !checkedOut {
		h.errorResponse(w, r, "尚未取得该设备的使用资格")
		return
	}

	res := &domain.Reservation{
		UserID:    myInfo.ID,
		MachineID: machine.ID,
		StartTime: startTime,
		EndTime:   endTime,
		Notes:     req.Notes,
	}

	if err := h.repository.CreateReservation(res); err != nil {
		h.bookingError(w, r, err)
		return
	}

	h.successResponse(w, r, "机时预约提交成功", res)
}

func (h *Handler) GetReservation(w http.ResponseWriter, r *http.Request) {
	myInfo := r.Context().Value(MyInfoCtx).(*domain.User)
	res := r.Context().Value(ReservationCtx).(*domain.Reservation)

	if myInfo.Role != domain.RoleAdmin && res.UserID != myInfo.ID {
		h.bookingError(w, r, domain.ErrForbidden)
		return
	}

	h.successResponse(w, r, "获取机时预约成功", res)
}

func (h *Handler) GetPendingReservations(w http.ResponseWriter, r *http.Request) {
	reservations, err := h.repository.GetPendingReservations()
	if err != nil {
		h.internalServerError(w, r, err)
		return
	}

	h.successResponse(w, r, "获取待审核机时预约列表成功", reservations)
}

func (h *Handler) ModerateReservation(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Decision    string `json:"decision" validate:"required,oneof=approve reject cancel"`
		Reason      string `json:"reason"`
		ReviewNotes string `json:"reviewNotes"`
	}

	if err := h.readJSON(r, &req); err != nil {
		h.badRequest(w, r, err)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		h.badRequest(w, r, err)
		return
	}

	decisions := map[string]domain.ReservationStatus{
		"approve": domain.ReservationStatusApproved,
		"reject":  domain.ReservationStatusRejected,
		"cancel":  domain.ReservationStatusCancelled,
	}

	myInfo := r.Context().Value(MyInfoCtx).(*domain.User)
	res := r.Context().Value(ReservationCtx).(*domain.Reservation)

	// 审核一经做出即为最终决定，不支持二次审核
	if err := h.repository.ModerateReservation(res, myInfo.ID, decisions[req.Decision], req.Reason, req.ReviewNotes); err != nil {
		h.bookingError(w, r, err)
		return
	}

	if user, err := h.repository.GetUserByID(res.UserID); err == nil {
		machineName := ""
		if machine, err := h.repository.GetMachineByID(res.MachineID); err == nil {
			machineName = machine.Name
		}

		h.publishNotification(domain.NotificationMessage{
			Type: "reservation_decision",
			To:   user.Email,
			Data: domain.ReservationDecisionData{
				MachineName: machineName,
				StartTime:   res.StartTime.Format(time.RFC3339),
				EndTime:     res.EndTime.Format(time.RFC3339),
				Decision:    req.Decision,
				Reason:      req.Reason,
			},
		})
	}

	h.successResponse(w, r, "机时预约审核完成", res)
}

func (h *Handler) CancelReservationByMember(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Reason string `json:"reason"`
	}

	if err := h.readJSON(r, &req); err != nil {
		h.badRequest(w, r, err)
		return
	}

	myInfo := r.Context().Value(MyInfoCtx).(*domain.User)
	res := r.Context().Value(ReservationCtx).(*domain.Reservation)

	if res.UserID != myInfo.ID {
		h.bookingError(w, r, domain.ErrForbidden)
		return
	}

	if err := h.repository.CancelReservationByMember(res, req.Reason); err != nil {
		h.bookingError(w, r, err)
		return
	}

	h.successResponse(w, r, "机时预约已取消", res)
}
