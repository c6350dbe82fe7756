package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/sysu-ecnc-dev/makerspace-booking/backend/internal/domain"
)

// publishNotification 在数据库事务提交之后调用。
// 通知发送失败只记录日志，绝不让已经落库的业务操作返回失败。
func (h *Handler) publishNotification(msg domain.NotificationMessage) {
	body, err := json.Marshal(msg)
	if err != nil {
		slog.Error("通知消息序列化失败", "type", msg.Type, "to", msg.To, "error", err)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(h.config.RabbitMQ.PublishTimeout)*time.Second)
	defer cancel()

	if err := h.notifyChannel.PublishWithContext(
		ctx,
		"",
		"notification_queue",
		true,
		false,
		amqp.Publishing{
			ContentType: "application/json",
			Body:        body,
		},
	); err != nil {
		slog.Error("通知消息发送失败", "type", msg.Type, "to", msg.To, "error", err)
	}
}

// notifyAdmins 给所有管理员发送同一条通知
func (h *Handler) notifyAdmins(msgType string, data any) {
	emails, err := h.repository.GetAdminEmails()
	if err != nil {
		slog.Error("获取管理员邮箱失败", "error", err)
		return
	}

	for _, email := range emails {
		h.publishNotification(domain.NotificationMessage{
			Type: msgType,
			To:   email,
			Data: data,
		})
	}
}

// bumpSlotCache 使某台设备的可用时段缓存失效。
// 缓存键中带有代数计数器，计数器自增后旧缓存自然过期。
func (h *Handler) bumpSlotCache(machineID int64) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(h.config.Redis.ConnectTimeout)*time.Second)
	defer cancel()

	if err := h.redisClient.Incr(ctx, fmt.Sprintf("slots_gen_%d", machineID)).Err(); err != nil {
		slog.Error("可用时段缓存失效失败", "machineID", machineID, "error", err)
	}
}
