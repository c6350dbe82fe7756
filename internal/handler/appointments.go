package handler

import (
	"database/sql"
	"errors"
	"net/http"
	"time"

	"github.com/sysu-ecnc-dev/makerspace-booking/backend/internal/domain"
	"github.com/sysu-ecnc-dev/makerspace-booking/backend/internal/schedule"
)

// RequestAppointment 处理会员提交考核预约。
// 这里先在无锁状态下做一轮廉价检查，把绝大多数必然失败的请求挡在
// 事务之外，真正的竞态安全校验在 repository 的事务内完成。
func (h *Handler) RequestAppointment(w http.ResponseWriter, r *http.Request) {
	var req struct {
		MachineID int64     `json:"machineID" validate:"required"`
		RuleID    int64     `json:"ruleID" validate:"required"`
		StartTime time.Time `json:"startTime" validate:"required"`
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

	myInfo := r.Context().Value(MyInfoCtx).(*domain.User)

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

	// 资格检查
	checkedOut, err := h.repository.HasActiveCheckout(myInfo.ID, machine.ID)
	if err != nil {
		h.internalServerError(w, r, err)
		return
	}
	if checkedOut {
		h.bookingError(w, r, domain.ErrAlreadyCheckedOut)
		return
	}

	missing, err := h.repository.GetMissingTrainingTitles(myInfo.ID, machine.ID)
	if err != nil {
		h.internalServerError(w, r, err)
		return
	}
	if len(missing) > 0 {
		h.bookingError(w, r, &domain.TrainingIncompleteError{Reasons: missing})
		return
	}

	open, err := h.repository.HasOpenAppointment(myInfo.ID, machine.ID)
	if err != nil {
		h.internalServerError(w, r, err)
		return
	}
	if open {
		h.errorResponse(w, r, "已有未了结的考核预约")
		return
	}

	startTime := req.StartTime.UTC()
	if !startTime.After(time.Now().UTC()) {
		h.bookingError(w, r, domain.ErrAlreadyStarted)
		return
	}

	// 开始时刻必须恰好落在规则的时间网格上
	rule, err := h.repository.GetAvailabilityRuleByID(req.RuleID)
	if err != nil {
		switch {
		case errors.Is(err, sql.ErrNoRows):
			h.errorResponse(w, r, "排班规则不存在")
		default:
			h.internalServerError(w, r, err)
		}
		return
	}
	if !rule.IsActive {
		h.bookingError(w, r, domain.ErrInactiveResource)
		return
	}

	loc, err := h.locations.Load(rule.Timezone)
	if err != nil {
		h.internalServerError(w, r, err)
		return
	}

	duration := time.Duration(machine.TrainingDuration) * time.Minute
	endTime, match := schedule.MatchSlot(rule, loc, startTime, duration)
	switch match {
	case schedule.MatchOutside:
		h.bookingError(w, r, domain.ErrSlotUnavailable)
		return
	case schedule.MatchMisaligned:
		h.bookingError(w, r, domain.ErrSlotMisaligned)
		return
	}

	// 廉价的冲突预检查，减少注定失败的事务
	busy, err := h.repository.GetOpenBusyIntervals(startTime, endTime)
	if err != nil {
		h.internalServerError(w, r, err)
		return
	}
	for _, interval := range busy {
		if interval.ManagerID == rule.ManagerID || interval.MachineID == machine.ID || interval.UserID == myInfo.ID {
			h.bookingError(w, r, domain.ErrSlotConflict)
			return
		}
	}

	app := &domain.Appointment{
		UserID:    myInfo.ID,
		MachineID: machine.ID,
		ManagerID: rule.ManagerID,
		RuleID:    rule.ID,
		StartTime: startTime,
		EndTime:   endTime,
		Notes:     req.Notes,
	}

	if err := h.repository.CreateAppointmentRequest(app); err != nil {
		h.bookingError(w, r, err)
		return
	}

	h.bumpSlotCache(machine.ID)

	h.notifyAdmins("appointment_requested", domain.AppointmentRequestedData{
		MemberName:  myInfo.FullName,
		MachineName: machine.Name,
		StartTime:   app.StartTime.Format(time.RFC3339),
		EndTime:     app.EndTime.Format(time.RFC3339),
	})

	h.successResponse(w, r, "考核预约提交成功", app)
}

// canViewAppointment 限制预约详情的可见范围：
// 会员只能看自己的，设备管理员只能看指派给自己的，管理员不受限制
func canViewAppointment(myInfo *domain.User, app *domain.Appointment) bool {
	switch myInfo.Role {
	case domain.RoleAdmin:
		return true
	case domain.RoleManager:
		return app.ManagerID == myInfo.ID
	default:
		return app.UserID == myInfo.ID
	}
}

func (h *Handler) GetAppointment(w http.ResponseWriter, r *http.Request) {
	myInfo := r.Context().Value(MyInfoCtx).(*domain.User)
	app := r.Context().Value(AppointmentCtx).(*domain.Appointment)

	if !canViewAppointment(myInfo, app) {
		h.bookingError(w, r, domain.ErrForbidden)
		return
	}

	h.successResponse(w, r, "获取考核预约成功", app)
}

func (h *Handler) GetAppointmentEvents(w http.ResponseWriter, r *http.Request) {
	myInfo := r.Context().Value(MyInfoCtx).(*domain.User)
	app := r.Context().Value(AppointmentCtx).(*domain.Appointment)

	if !canViewAppointment(myInfo, app) {
		h.bookingError(w, r, domain.ErrForbidden)
		return
	}

	events, err := h.repository.GetAppointmentEvents(app.ID)
	if err != nil {
		h.internalServerError(w, r, err)
		return
	}

	h.successResponse(w, r, "获取预约审计记录成功", events)
}

func (h *Handler) GetPendingAppointments(w http.ResponseWriter, r *http.Request) {
	appointments, err := h.repository.GetPendingAppointments()
	if err != nil {
		h.internalServerError(w, r, err)
		return
	}

	h.successResponse(w, r, "获取待审核预约列表成功", appointments)
}

func (h *Handler) ModerateAppointment(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Decision string `json:"decision" validate:"required,oneof=accept reject"`
		Reason   string `json:"reason"`
	}

	if err := h.readJSON(r, &req); err != nil {
		h.badRequest(w, r, err)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		h.badRequest(w, r, err)
		return
	}

	accept := req.Decision == "accept"
	if !accept && req.Reason == "" {
		h.bookingError(w, r, domain.ErrReasonRequired)
		return
	}

	myInfo := r.Context().Value(MyInfoCtx).(*domain.User)
	app := r.Context().Value(AppointmentCtx).(*domain.Appointment)

	if err := h.repository.ModerateAppointment(app, myInfo.ID, accept, req.Reason); err != nil {
		h.bookingError(w, r, err)
		return
	}

	h.bumpSlotCache(app.MachineID)

	h.notifyAppointmentParties(app, "appointment_decision", func(machineName string) any {
		return domain.AppointmentDecisionData{
			MachineName: machineName,
			StartTime:   app.StartTime.Format(time.RFC3339),
			Decision:    req.Decision,
			Reason:      req.Reason,
		}
	})

	h.successResponse(w, r, "预约审核完成", app)
}

func (h *Handler) FinalizeAppointment(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Result string `json:"result" validate:"required,oneof=pass fail"`
		Notes  string `json:"notes"`
	}

	if err := h.readJSON(r, &req); err != nil {
		h.badRequest(w, r, err)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		h.badRequest(w, r, err)
		return
	}

	myInfo := r.Context().Value(MyInfoCtx).(*domain.User)
	app := r.Context().Value(AppointmentCtx).(*domain.Appointment)

	// 考核通过时在同一事务内授予使用资格
	checkoutGranted, err := h.repository.FinalizeAppointment(app, myInfo.ID, domain.AppointmentResult(req.Result), req.Notes)
	if err != nil {
		h.bookingError(w, r, err)
		return
	}

	h.bumpSlotCache(app.MachineID)

	h.notifyAppointmentParties(app, "appointment_result", func(machineName string) any {
		return domain.AppointmentResultData{
			MachineName:     machineName,
			Result:          req.Result,
			Notes:           req.Notes,
			CheckoutGranted: checkoutGranted,
		}
	})

	h.successResponse(w, r, "考核结果已记录", map[string]any{
		"appointment":     app,
		"checkoutGranted": checkoutGranted,
	})
}

func (h *Handler) CancelAppointment(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Reason string `json:"reason"`
	}

	if err := h.readJSON(r, &req); err != nil {
		h.badRequest(w, r, err)
		return
	}

	myInfo := r.Context().Value(MyInfoCtx).(*domain.User)
	app := r.Context().Value(AppointmentCtx).(*domain.Appointment)

	// 取消权限与查看权限一致
	if !canViewAppointment(myInfo, app) {
		h.bookingError(w, r, domain.ErrForbidden)
		return
	}

	if err := h.repository.CancelAppointment(app, myInfo.ID, myInfo.Role, req.Reason); err != nil {
		h.bookingError(w, r, err)
		return
	}

	h.bumpSlotCache(app.MachineID)

	h.notifyAppointmentParties(app, "appointment_cancelled", func(machineName string) any {
		return domain.AppointmentCancelledData{
			MachineName: machineName,
			StartTime:   app.StartTime.Format(time.RFC3339),
			Reason:      req.Reason,
		}
	})

	h.successResponse(w, r, "预约已取消", app)
}

// notifyAppointmentParties 向预约的会员和负责考核的管理员发送同一类通知
func (h *Handler) notifyAppointmentParties(app *domain.Appointment, msgType string, buildData func(machineName string) any) {
	machineName := ""
	if machine, err := h.repository.GetMachineByID(app.MachineID); err == nil {
		machineName = machine.Name
	}

	data := buildData(machineName)

	for _, userID := range []int64{app.UserID, app.ManagerID} {
		user, err := h.repository.GetUserByID(userID)
		if err != nil {
			continue
		}
		h.publishNotification(domain.NotificationMessage{
			Type: msgType,
			To:   user.Email,
			Data: data,
		})
	}
}
