package handler

import (
	"database/sql"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/sysu-ecnc-dev/makerspace-booking/backend/internal/domain"
)

func (h *Handler) CreateMachine(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name        string `json:"name" validate:"required"`
		Description string `json:"description"`
		Location    string `json:"location" validate:"required"`
		// 考核时长（分钟），决定该设备可用时段的固定长度
		TrainingDuration int32 `json:"trainingDuration" validate:"required,min=15,max=480"`
	}

	if err := h.readJSON(r, &req); err != nil {
		h.badRequest(w, r, err)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		h.badRequest(w, r, err)
		return
	}

	machine := &domain.Machine{
		Name:             req.Name,
		Description:      req.Description,
		Location:         req.Location,
		TrainingDuration: req.TrainingDuration,
	}

	if err := h.repository.CreateMachine(machine); err != nil {
		h.internalServerError(w, r, err)
		return
	}

	h.successResponse(w, r, "设备创建成功", machine)
}

func (h *Handler) GetAllMachines(w http.ResponseWriter, r *http.Request) {
	machines, err := h.repository.GetAllMachines()
	if err != nil {
		h.internalServerError(w, r, err)
		return
	}

	h.successResponse(w, r, "获取设备列表成功", machines)
}

func (h *Handler) GetMachine(w http.ResponseWriter, r *http.Request) {
	machine := r.Context().Value(MachineCtx).(*domain.Machine)
	h.successResponse(w, r, "获取设备信息成功", machine)
}

func (h *Handler) UpdateMachine(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name             *string `json:"name"`
		Description      *string `json:"description"`
		Location         *string `json:"location"`
		TrainingDuration *int32  `json:"trainingDuration" validate:"omitempty,min=15,max=480"`
		IsActive         *bool   `json:"isActive"`
	}

	if err := h.readJSON(r, &req); err != nil {
		h.badRequest(w, r, err)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		h.badRequest(w, r, err)
		return
	}

	machine := r.Context().Value(MachineCtx).(*domain.Machine)

	if req.Name != nil {
		machine.Name = *req.Name
	}
	if req.Description != nil {
		machine.Description = *req.Description
	}
	if req.Location != nil {
		machine.Location = *req.Location
	}
	if req.TrainingDuration != nil {
		machine.TrainingDuration = *req.TrainingDuration
	}
	if req.IsActive != nil {
		machine.IsActive = *req.IsActive
	}

	if err := h.repository.UpdateMachine(machine); err != nil {
		h.internalServerError(w, r, err)
		return
	}

	// 考核时长或停用状态的变化会影响可用时段
	h.bumpSlotCache(machine.ID)

	h.successResponse(w, r, "设备信息更新成功", machine)
}

func (h *Handler) RevokeCheckout(w http.ResponseWriter, r *http.Request) {
	myInfo := r.Context().Value(MyInfoCtx).(*domain.User)
	machine := r.Context().Value(MachineCtx).(*domain.Machine)

	userIDParam := chi.URLParam(r, "userID")
	userID, err := strconv.ParseInt(userIDParam, 10, 64)
	if err != nil {
		h.errorResponse(w, r, "用户ID无效")
		return
	}

	user, err := h.repository.GetUserByID(userID)
	if err != nil {
		switch {
		case errors.Is(err, sql.ErrNoRows):
			h.errorResponse(w, r, "用户不存在")
		default:
			h.internalServerError(w, r, err)
		}
		return
	}

	// 撤销资格的同时会取消该会员在该设备上所有未开始的考核预约
	if err := h.repository.RevokeCheckout(userID, machine.ID, myInfo.ID); err != nil {
		h.bookingError(w, r, err)
		return
	}

	h.bumpSlotCache(machine.ID)

	h.publishNotification(domain.NotificationMessage{
		Type: "checkout_revoked",
		To:   user.Email,
		Data: domain.CheckoutRevokedData{
			MachineName: machine.Name,
		},
	})

	h.successResponse(w, r, "使用资格已撤销", nil)
}
