package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/sysu-ecnc-dev/makerspace-booking/backend/internal/domain"
)

// insertAppointmentEvent 在状态转移所在的事务内追加一条审计记录，
// 保证预约变更和审计记录要么同时提交要么同时回滚
func insertAppointmentEvent(ctx context.Context, tx *sql.Tx, event *domain.AppointmentEvent) error {
	query := `
		INSERT INTO appointment_events (appointment_id, event_type, actor_id, actor_role, from_status, to_status, metadata)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, created_at
	`

	args := []any{event.AppointmentID, event.EventType, event.ActorID, event.ActorRole, event.FromStatus, event.ToStatus, event.Metadata}
	if err := tx.QueryRowContext(ctx, query, args...).Scan(&event.ID, &event.CreatedAt); err != nil {
		return err
	}

	return nil
}

func (r *Repository) GetAppointmentEvents(appointmentID int64) ([]*domain.AppointmentEvent, error) {
	query := `
		SELECT id, event_type, actor_id, actor_role, from_status, to_status, metadata, created_at
		FROM appointment_events
		WHERE appointment_id = $1
		ORDER BY id
	`

	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(r.cfg.Database.QueryTimeout)*time.Second)
	defer cancel()

	rows, err := r.dbpool.QueryContext(ctx, query, appointmentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	events := make([]*domain.AppointmentEvent, 0)
	for rows.Next() {
		event := &domain.AppointmentEvent{
			AppointmentID: appointmentID,
		}
		dst := []any{&event.ID, &event.EventType, &event.ActorID, &event.ActorRole, &event.FromStatus, &event.ToStatus, &event.Metadata, &event.CreatedAt}
		if err := rows.Scan(dst...); err != nil {
			return nil, err
		}
		events = append(events, event)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return events, nil
}
