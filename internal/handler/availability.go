package handler

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"
	"github.com/sysu-ecnc-dev/makerspace-booking/backend/internal/domain"
	"github.com/sysu-ecnc-dev/makerspace-booking/backend/internal/schedule"
)

// GetAvailableSlots 返回某台设备在查询窗口内所有可预约的考核时段。
// 任何不满足预约条件的情况（设备不存在、设备停用、已有使用资格、
// 已有未了结的预约）都返回空列表而不是错误。
func (h *Handler) GetAvailableSlots(w http.ResponseWriter, r *http.Request) {
	myInfo := r.Context().Value(MyInfoCtx).(*domain.User)

	now := time.Now().UTC()

	windowStart := now
	if fromParam := r.URL.Query().Get("from"); fromParam != "" {
		from, err := time.Parse(time.RFC3339, fromParam)
		if err != nil {
			h.errorResponse(w, r, "查询窗口开始时间格式无效")
			return
		}
		if from.After(windowStart) {
			windowStart = from.UTC()
		}
	}

	maxEnd := windowStart.AddDate(0, 0, h.config.Booking.MaxWindowDays)
	windowEnd := maxEnd
	if toParam := r.URL.Query().Get("to"); toParam != "" {
		to, err := time.Parse(time.RFC3339, toParam)
		if err != nil {
			h.errorResponse(w, r, "查询窗口结束时间格式无效")
			return
		}
		// 超过最大窗口长度时静默收窄
		if to.UTC().Before(maxEnd) {
			windowEnd = to.UTC()
		}
	}

	emptySlots := make([]schedule.Slot, 0)

	// 设备不存在与设备停用同等对待：空列表而不是报错
	machineID, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		h.successResponse(w, r, "获取可用时段成功", emptySlots)
		return
	}

	machine, err := h.repository.GetMachineByID(machineID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			h.successResponse(w, r, "获取可用时段成功", emptySlots)
			return
		}
		h.internalServerError(w, r, err)
		return
	}

	if !machine.IsActive || !windowEnd.After(windowStart) {
		h.successResponse(w, r, "获取可用时段成功", emptySlots)
		return
	}

	// 会员视角下无法预约的情况一律短路为空列表
	memberID := int64(0)
	if myInfo.Role == domain.RoleMember {
		memberID = myInfo.ID

		checkedOut, err := h.repository.HasActiveCheckout(myInfo.ID, machine.ID)
		if err != nil {
			h.internalServerError(w, r, err)
			return
		}
		if checkedOut {
			h.successResponse(w, r, "获取可用时段成功", emptySlots)
			return
		}

		open, err := h.repository.HasOpenAppointment(myInfo.ID, machine.ID)
		if err != nil {
			h.internalServerError(w, r, err)
			return
		}
		if open {
			h.successResponse(w, r, "获取可用时段成功", emptySlots)
			return
		}
	}

	if slots, ok := h.cachedSlots(machine.ID, memberID, windowStart, windowEnd); ok {
		h.successResponse(w, r, "获取可用时段成功", slots)
		return
	}

	rules, err := h.repository.GetActiveAvailabilityRules()
	if err != nil {
		h.internalServerError(w, r, err)
		return
	}

	busy, err := h.repository.GetOpenBusyIntervals(windowStart, windowEnd)
	if err != nil {
		h.internalServerError(w, r, err)
		return
	}

	slots, err := schedule.AvailableSlots(h.locations, schedule.AvailabilityInput{
		Rules:       rules,
		Busy:        busy,
		MachineID:   machine.ID,
		MemberID:    memberID,
		WindowStart: windowStart,
		WindowEnd:   windowEnd,
		Duration:    time.Duration(machine.TrainingDuration) * time.Minute,
		Now:         now,
	})
	if err != nil {
		h.internalServerError(w, r, err)
		return
	}

	h.storeSlotsCache(machine.ID, memberID, windowStart, windowEnd, slots)

	h.successResponse(w, r, "获取可用时段成功", slots)
}

// slotCacheKey 在键中带上设备的缓存代数，预约或规则变动后代数自增，
// 旧键不再被读取并随 TTL 过期
func (h *Handler) slotCacheKey(ctx context.Context, machineID, memberID int64, windowStart, windowEnd time.Time) (string, error) {
	gen, err := h.redisClient.Get(ctx, fmt.Sprintf("slots_gen_%d", machineID)).Int64()
	if err != nil && !errors.Is(err, redis.Nil) {
		return "", err
	}

	return fmt.Sprintf("slots_%d_%d_%d_%d_%d", machineID, memberID, windowStart.Unix(), windowEnd.Unix(), gen), nil
}

func (h *Handler) cachedSlots(machineID, memberID int64, windowStart, windowEnd time.Time) ([]schedule.Slot, bool) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(h.config.Redis.ConnectTimeout)*time.Second)
	defer cancel()

	key, err := h.slotCacheKey(ctx, machineID, memberID, windowStart, windowEnd)
	if err != nil {
		slog.Error("读取可用时段缓存代数失败", "machineID", machineID, "error", err)
		return nil, false
	}

	payload, err := h.redisClient.Get(ctx, key).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			slog.Error("读取可用时段缓存失败", "machineID", machineID, "error", err)
		}
		return nil, false
	}

	slots := make([]schedule.Slot, 0)
	if err := json.Unmarshal(payload, &slots); err != nil {
		slog.Error("可用时段缓存反序列化失败", "machineID", machineID, "error", err)
		return nil, false
	}

	return slots, true
}

func (h *Handler) storeSlotsCache(machineID, memberID int64, windowStart, windowEnd time.Time, slots []schedule.Slot) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(h.config.Redis.ConnectTimeout)*time.Second)
	defer cancel()

	key, err := h.slotCacheKey(ctx, machineID, memberID, windowStart, windowEnd)
	if err != nil {
		slog.Error("读取可用时段缓存代数失败", "machineID", machineID, "error", err)
		return
	}

	payload, err := json.Marshal(slots)
	if err != nil {
		slog.Error("可用时段缓存序列化失败", "machineID", machineID, "error", err)
		return
	}

	expiration := time.Duration(h.config.Booking.SlotCacheExpiration) * time.Second
	if err := h.redisClient.Set(ctx, key, payload, expiration).Err(); err != nil {
		slog.Error("写入可用时段缓存失败", "machineID", machineID, "error", err)
	}
}
