package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/sysu-ecnc-dev/makerspace-booking/backend/internal/domain"
	"github.com/sysu-ecnc-dev/makerspace-booking/backend/internal/utils"
)

func (h *Handler) CreateAvailabilityRule(w http.ResponseWriter, r *http.Request) {
	var req struct {
		// 0 = 周日
		DayOfWeek   *int32 `json:"dayOfWeek" validate:"required,min=0,max=6"`
		StartMinute *int32 `json:"startMinute" validate:"required"`
		EndMinute   *int32 `json:"endMinute" validate:"required"`
		Timezone    string `json:"timezone"`
		Notes       string `json:"notes"`
	}

	if err := h.readJSON(r, &req); err != nil {
		h.badRequest(w, r, err)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		h.badRequest(w, r, err)
		return
	}

	if err := utils.ValidateMinuteRange(*req.StartMinute, *req.EndMinute); err != nil {
		h.bookingError(w, r, err)
		return
	}

	// 时区在创建时快照到规则中，后续配置变更不影响已有规则
	timezone := req.Timezone
	if timezone == "" {
		timezone = h.config.Booking.DefaultTimezone
	}
	if _, err := h.locations.Load(timezone); err != nil {
		h.errorResponse(w, r, "无效的时区名称")
		return
	}

	myInfo := r.Context().Value(MyInfoCtx).(*domain.User)

	rule := &domain.AvailabilityRule{
		ManagerID:   myInfo.ID,
		DayOfWeek:   *req.DayOfWeek,
		StartMinute: *req.StartMinute,
		EndMinute:   *req.EndMinute,
		Timezone:    timezone,
		Notes:       req.Notes,
	}

	if err := h.repository.CreateAvailabilityRule(rule); err != nil {
		h.bookingError(w, r, err)
		return
	}

	h.successResponse(w, r, "排班规则创建成功", rule)
}

func (h *Handler) GetMyAvailabilityRules(w http.ResponseWriter, r *http.Request) {
	myInfo := r.Context().Value(MyInfoCtx).(*domain.User)

	rules, err := h.repository.GetActiveAvailabilityRulesByManager(myInfo.ID)
	if err != nil {
		h.internalServerError(w, r, err)
		return
	}

	h.successResponse(w, r, "获取排班规则列表成功", rules)
}

func (h *Handler) DeactivateAvailabilityRule(w http.ResponseWriter, r *http.Request) {
	ruleIDParam := chi.URLParam(r, "id")
	ruleID, err := strconv.ParseInt(ruleIDParam, 10, 64)
	if err != nil {
		h.errorResponse(w, r, "规则ID无效")
		return
	}

	myInfo := r.Context().Value(MyInfoCtx).(*domain.User)

	// 管理员可以停用任何人的规则，设备管理员只能停用自己的
	managerID := myInfo.ID
	if myInfo.Role == domain.RoleAdmin {
		managerID = 0
	}

	// 停用对已经停用的规则是幂等的，规则永远不会被物理删除，
	// 已有预约仍然引用它
	rule, err := h.repository.DeactivateAvailabilityRule(ruleID, managerID)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrNotFound):
			h.errorResponse(w, r, "排班规则不存在")
		default:
			h.bookingError(w, r, err)
		}
		return
	}

	h.successResponse(w, r, "排班规则已停用", rule)
}
