package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/sysu-ecnc-dev/makerspace-booking/backend/internal/domain"
)

func (r *Repository) HasActiveCheckout(userID, machineID int64) (bool, error) {
	query := `
		SELECT EXISTS (
			SELECT 1 FROM checkouts
			WHERE user_id = $1 AND machine_id = $2 AND revoked_at IS NULL
		)
	`

	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(r.cfg.Database.QueryTimeout)*time.Second)
	defer cancel()

	var exists bool
	if err := r.dbpool.QueryRowContext(ctx, query, userID, machineID).Scan(&exists); err != nil {
		return false, err
	}

	return exists, nil
}

func (r *Repository) GetCheckoutsByUser(userID int64) ([]*domain.Checkout, error) {
	query := `
		SELECT id, machine_id, granted_by, granted_at, revoked_by, revoked_at
		FROM checkouts
		WHERE user_id = $1 AND revoked_at IS NULL
		ORDER BY granted_at DESC
	`

	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(r.cfg.Database.QueryTimeout)*time.Second)
	defer cancel()

	rows, err := r.dbpool.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	checkouts := make([]*domain.Checkout, 0)
	for rows.Next() {
		checkout := &domain.Checkout{
			UserID: userID,
		}
		dst := []any{&checkout.ID, &checkout.MachineID, &checkout.GrantedBy, &checkout.GrantedAt, &checkout.RevokedBy, &checkout.RevokedAt}
		if err := rows.Scan(dst...); err != nil {
			return nil, err
		}
		checkouts = append(checkouts, checkout)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return checkouts, nil
}

// RevokeCheckout 撤销会员对某设备的使用资格，并在同一个事务里
// 批量取消该会员在这台设备上所有尚未开始的非终态预约。
func (r *Repository) RevokeCheckout(userID, machineID, adminID int64) error {
	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(r.cfg.Database.TransactionTimeout)*time.Second)
	defer cancel()

	tx, err := r.dbpool.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if err := acquireEntityLocks(ctx, tx,
		advisoryLockKey("machine", machineID),
		advisoryLockKey("member", userID),
	); err != nil {
		return err
	}

	query := `
		UPDATE checkouts
		SET revoked_by = $1, revoked_at = now()
		WHERE user_id = $2 AND machine_id = $3 AND revoked_at IS NULL
		RETURNING id
	`

	var checkoutID int64
	if err := tx.QueryRowContext(ctx, query, adminID, userID, machineID).Scan(&checkoutID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.ErrNotFound
		}
		return err
	}

	// 批量取消未开始的预约，每一条都要留下审计记录
	query = `
		SELECT id, status FROM appointments
		WHERE user_id = $1 AND machine_id = $2
			AND status IN ('pending', 'accepted')
			AND start_time > now()
		FOR UPDATE
	`

	rows, err := tx.QueryContext(ctx, query, userID, machineID)
	if err != nil {
		return err
	}
	defer rows.Close()

	type openAppointment struct {
		id     int64
		status domain.AppointmentStatus
	}
	open := make([]openAppointment, 0)
	for rows.Next() {
		var app openAppointment
		if err := rows.Scan(&app.id, &app.status); err != nil {
			return err
		}
		open = append(open, app)
	}
	if err := rows.Err(); err != nil {
		return err
	}

	for _, app := range open {
		query = `
			UPDATE appointments
			SET status = $1, cancellation_reason = $2, version = version + 1
			WHERE id = $3
		`
		if _, err := tx.ExecContext(ctx, query, domain.AppointmentStatusCancelled, "设备使用资格已被撤销", app.id); err != nil {
			return err
		}

		event := &domain.AppointmentEvent{
			AppointmentID: app.id,
			EventType:     domain.AppointmentEventCancelled,
			ActorID:       adminID,
			ActorRole:     domain.RoleAdmin,
			FromStatus:    app.status,
			ToStatus:      domain.AppointmentStatusCancelled,
			Metadata:      "设备使用资格已被撤销",
		}
		if err := insertAppointmentEvent(ctx, tx, event); err != nil {
			return err
		}
	}

	return tx.Commit()
}
