package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/sysu-ecnc-dev/makerspace-booking/backend/internal/domain"
	"github.com/sysu-ecnc-dev/makerspace-booking/backend/internal/schedule"
)

func (r *Repository) GetAppointmentByID(id int64) (*domain.Appointment, error) {
	query := `
		SELECT user_id, machine_id, manager_id, rule_id, start_time, end_time, status,
			notes, decision_reason, COALESCE(result, ''), result_notes, cancellation_reason,
			reviewed_by, reviewed_at, resulted_by, resulted_at, created_at, version
		FROM appointments WHERE id = $1
	`

	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(r.cfg.Database.QueryTimeout)*time.Second)
	defer cancel()

	app := &domain.Appointment{
		ID: id,
	}

	dst := []any{
		&app.UserID, &app.MachineID, &app.ManagerID, &app.RuleID, &app.StartTime, &app.EndTime, &app.Status,
		&app.Notes, &app.DecisionReason, &app.Result, &app.ResultNotes, &app.CancellationReason,
		&app.ReviewedBy, &app.ReviewedAt, &app.ResultedBy, &app.ResultedAt, &app.CreatedAt, &app.Version,
	}
	if err := r.dbpool.QueryRowContext(ctx, query, id).Scan(dst...); err != nil {
		return nil, err
	}

	return app, nil
}

// GetOpenBusyIntervals 返回窗口内所有仍占用时段的预约，作为冲突检测的输入
func (r *Repository) GetOpenBusyIntervals(windowStart, windowEnd time.Time) ([]schedule.BusyInterval, error) {
	query := `
		SELECT manager_id, machine_id, user_id, start_time, end_time
		FROM appointments
		WHERE status IN ('pending', 'accepted')
			AND start_time < $2
			AND end_time > $1
	`

	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(r.cfg.Database.QueryTimeout)*time.Second)
	defer cancel()

	rows, err := r.dbpool.QueryContext(ctx, query, windowStart, windowEnd)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	intervals := make([]schedule.BusyInterval, 0)
	for rows.Next() {
		interval := schedule.BusyInterval{}
		if err := rows.Scan(&interval.ManagerID, &interval.MachineID, &interval.UserID, &interval.Start, &interval.End); err != nil {
			return nil, err
		}
		intervals = append(intervals, interval)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return intervals, nil
}

// HasOpenAppointment 检查会员在某台设备上是否已有未了结的考核预约
func (r *Repository) HasOpenAppointment(userID, machineID int64) (bool, error) {
	query := `
		SELECT EXISTS (
			SELECT 1 FROM appointments
			WHERE user_id = $1 AND machine_id = $2 AND status IN ('pending', 'accepted')
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

// hasOpenAppointmentConflict 在事务内检查给定时段是否与管理员、设备或会员
// 任一维度上的非终态预约相交，excludeID 用于审核路径排除预约自身
func hasOpenAppointmentConflict(ctx context.Context, tx *sql.Tx, app *domain.Appointment, excludeID int64) (bool, error) {
	query := `
		SELECT EXISTS (
			SELECT 1 FROM appointments
			WHERE status IN ('pending', 'accepted')
				AND id <> $1
				AND start_time < $3
				AND end_time > $2
				AND (manager_id = $4 OR machine_id = $5 OR user_id = $6)
		)
	`

	var conflict bool
	args := []any{excludeID, app.StartTime, app.EndTime, app.ManagerID, app.MachineID, app.UserID}
	if err := tx.QueryRowContext(ctx, query, args...).Scan(&conflict); err != nil {
		return false, err
	}
	return conflict, nil
}

func hasActiveCheckoutTx(ctx context.Context, tx *sql.Tx, userID, machineID int64) (bool, error) {
	query := `
		SELECT EXISTS (
			SELECT 1 FROM checkouts
			WHERE user_id = $1 AND machine_id = $2 AND revoked_at IS NULL
		)
	`

	var exists bool
	if err := tx.QueryRowContext(ctx, query, userID, machineID).Scan(&exists); err != nil {
		return false, err
	}
	return exists, nil
}

// CreateAppointmentRequest 是预约提交的竞态安全路径。
// handler 在无锁状态下已经做过一遍廉价的资格和冲突检查，
// 这里在事务内按固定顺序（管理员 -> 设备 -> 会员）获取咨询锁后，
// 对最新已提交状态重新校验一遍，全部通过才插入预约和审计记录。
// 任何一项复查失败都返回对应的业务错误并回滚，不会自动重试。
func (r *Repository) CreateAppointmentRequest(app *domain.Appointment) error {
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
		advisoryLockKey("manager", app.ManagerID),
		advisoryLockKey("machine", app.MachineID),
		advisoryLockKey("member", app.UserID),
	); err != nil {
		return err
	}

	// 复查：提交请求和获得锁之间可能已经有人拿到了该设备的使用资格
	checkedOut, err := hasActiveCheckoutTx(ctx, tx, app.UserID, app.MachineID)
	if err != nil {
		return err
	}
	if checkedOut {
		return domain.ErrAlreadyCheckedOut
	}

	// 复查：同一会员对同一设备只允许存在一个非终态预约
	query := `
		SELECT EXISTS (
			SELECT 1 FROM appointments
			WHERE user_id = $1 AND machine_id = $2 AND status IN ('pending', 'accepted')
		)
	`
	var hasOpen bool
	if err := tx.QueryRowContext(ctx, query, app.UserID, app.MachineID).Scan(&hasOpen); err != nil {
		return err
	}
	if hasOpen {
		return domain.ErrSlotUnavailable
	}

	// 复查：时段冲突
	conflict, err := hasOpenAppointmentConflict(ctx, tx, app, 0)
	if err != nil {
		return err
	}
	if conflict {
		return domain.ErrSlotConflict
	}

	query = `
		INSERT INTO appointments (user_id, machine_id, manager_id, rule_id, start_time, end_time, status, notes)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id, created_at, version
	`

	app.Status = domain.AppointmentStatusPending
	args := []any{app.UserID, app.MachineID, app.ManagerID, app.RuleID, app.StartTime, app.EndTime, app.Status, app.Notes}
	if err := tx.QueryRowContext(ctx, query, args...).Scan(&app.ID, &app.CreatedAt, &app.Version); err != nil {
		return err
	}

	event := &domain.AppointmentEvent{
		AppointmentID: app.ID,
		EventType:     domain.AppointmentEventRequested,
		ActorID:       app.UserID,
		ActorRole:     domain.RoleMember,
		FromStatus:    "",
		ToStatus:      domain.AppointmentStatusPending,
		Metadata:      app.Notes,
	}
	if err := insertAppointmentEvent(ctx, tx, event); err != nil {
		return err
	}

	return tx.Commit()
}

// lockAppointmentStatus 在事务内重读预约的最新状态并加行锁
func lockAppointmentStatus(ctx context.Context, tx *sql.Tx, id int64) (domain.AppointmentStatus, error) {
	var status domain.AppointmentStatus
	query := `SELECT status FROM appointments WHERE id = $1 FOR UPDATE`
	if err := tx.QueryRowContext(ctx, query, id).Scan(&status); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", domain.ErrNotFound
		}
		return "", err
	}
	return status, nil
}

// ModerateAppointment 由管理员通过或拒绝一个待审核预约。
// 通过时必须重新检查冲突：从请求提交到审核之间，
// 另一个与之相交的请求可能已经被通过。
func (r *Repository) ModerateAppointment(app *domain.Appointment, reviewerID int64, accept bool, reason string) error {
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
		advisoryLockKey("manager", app.ManagerID),
		advisoryLockKey("machine", app.MachineID),
		advisoryLockKey("member", app.UserID),
	); err != nil {
		return err
	}

	status, err := lockAppointmentStatus(ctx, tx, app.ID)
	if err != nil {
		return err
	}
	if status != domain.AppointmentStatusPending {
		return domain.ErrNotPending
	}

	toStatus := domain.AppointmentStatusRejected
	eventType := domain.AppointmentEventRejected
	if accept {
		if !app.StartTime.After(time.Now()) {
			return domain.ErrAlreadyStarted
		}

		conflict, err := hasOpenAppointmentConflict(ctx, tx, app, app.ID)
		if err != nil {
			return err
		}
		if conflict {
			return domain.ErrSlotConflict
		}

		toStatus = domain.AppointmentStatusAccepted
		eventType = domain.AppointmentEventAccepted
	}

	query := `
		UPDATE appointments
		SET status = $1, decision_reason = $2, reviewed_by = $3, reviewed_at = now(), version = version + 1
		WHERE id = $4
		RETURNING reviewed_at, version
	`

	if err := tx.QueryRowContext(ctx, query, toStatus, reason, reviewerID, app.ID).Scan(&app.ReviewedAt, &app.Version); err != nil {
		return err
	}
	app.Status = toStatus
	app.DecisionReason = reason
	app.ReviewedBy = &reviewerID

	event := &domain.AppointmentEvent{
		AppointmentID: app.ID,
		EventType:     eventType,
		ActorID:       reviewerID,
		ActorRole:     domain.RoleAdmin,
		FromStatus:    domain.AppointmentStatusPending,
		ToStatus:      toStatus,
		Metadata:      reason,
	}
	if err := insertAppointmentEvent(ctx, tx, event); err != nil {
		return err
	}

	return tx.Commit()
}

// FinalizeAppointment 记录考核结果。考核通过且会员还没有该设备的
// 使用资格时，在同一个事务里补发资格，返回值表示是否发生了补发。
func (r *Repository) FinalizeAppointment(app *domain.Appointment, adminID int64, result domain.AppointmentResult, notes string) (bool, error) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(r.cfg.Database.TransactionTimeout)*time.Second)
	defer cancel()

	tx, err := r.dbpool.BeginTx(ctx, nil)
	if err != nil {
		return false, err
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if err := acquireEntityLocks(ctx, tx,
		advisoryLockKey("manager", app.ManagerID),
		advisoryLockKey("machine", app.MachineID),
		advisoryLockKey("member", app.UserID),
	); err != nil {
		return false, err
	}

	status, err := lockAppointmentStatus(ctx, tx, app.ID)
	if err != nil {
		return false, err
	}
	if status != domain.AppointmentStatusAccepted {
		return false, domain.ErrNotAccepted
	}

	query := `
		UPDATE appointments
		SET status = $1, result = $2, result_notes = $3, resulted_by = $4, resulted_at = now(), version = version + 1
		WHERE id = $5
		RETURNING resulted_at, version
	`

	if err := tx.QueryRowContext(ctx, query, domain.AppointmentStatusCompleted, result, notes, adminID, app.ID).Scan(&app.ResultedAt, &app.Version); err != nil {
		return false, err
	}
	app.Status = domain.AppointmentStatusCompleted
	app.Result = result
	app.ResultNotes = notes
	app.ResultedBy = &adminID

	eventType := domain.AppointmentEventFailed
	if result == domain.AppointmentResultPass {
		eventType = domain.AppointmentEventPassed
	}
	event := &domain.AppointmentEvent{
		AppointmentID: app.ID,
		EventType:     eventType,
		ActorID:       adminID,
		ActorRole:     domain.RoleAdmin,
		FromStatus:    domain.AppointmentStatusAccepted,
		ToStatus:      domain.AppointmentStatusCompleted,
		Metadata:      notes,
	}
	if err := insertAppointmentEvent(ctx, tx, event); err != nil {
		return false, err
	}

	checkoutGranted := false
	if result == domain.AppointmentResultPass {
		checkedOut, err := hasActiveCheckoutTx(ctx, tx, app.UserID, app.MachineID)
		if err != nil {
			return false, err
		}
		if !checkedOut {
			query = `
				INSERT INTO checkouts (user_id, machine_id, granted_by)
				VALUES ($1, $2, $3)
			`
			if _, err := tx.ExecContext(ctx, query, app.UserID, app.MachineID, adminID); err != nil {
				return false, err
			}
			checkoutGranted = true
		}
	}

	if err := tx.Commit(); err != nil {
		return false, err
	}

	return checkoutGranted, nil
}

// CancelAppointment 取消一个尚未开始的非终态预约。
// 角色权限由 handler 校验，这里只负责状态机和时间约束。
func (r *Repository) CancelAppointment(app *domain.Appointment, actorID int64, actorRole domain.Role, reason string) error {
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
		advisoryLockKey("manager", app.ManagerID),
		advisoryLockKey("machine", app.MachineID),
		advisoryLockKey("member", app.UserID),
	); err != nil {
		return err
	}

	status, err := lockAppointmentStatus(ctx, tx, app.ID)
	if err != nil {
		return err
	}
	if !status.CanTransitionTo(domain.AppointmentStatusCancelled) {
		return domain.ErrNotCancellable
	}
	if !app.StartTime.After(time.Now()) {
		return domain.ErrAlreadyStarted
	}

	query := `
		UPDATE appointments
		SET status = $1, cancellation_reason = $2, version = version + 1
		WHERE id = $3
		RETURNING version
	`

	if err := tx.QueryRowContext(ctx, query, domain.AppointmentStatusCancelled, reason, app.ID).Scan(&app.Version); err != nil {
		return err
	}
	fromStatus := status
	app.Status = domain.AppointmentStatusCancelled
	app.CancellationReason = reason

	event := &domain.AppointmentEvent{
		AppointmentID: app.ID,
		EventType:     domain.AppointmentEventCancelled,
		ActorID:       actorID,
		ActorRole:     actorRole,
		FromStatus:    fromStatus,
		ToStatus:      domain.AppointmentStatusCancelled,
		Metadata:      reason,
	}
	if err := insertAppointmentEvent(ctx, tx, event); err != nil {
		return err
	}

	return tx.Commit()
}

func (r *Repository) scanAppointments(ctx context.Context, query string, args ...any) ([]*domain.Appointment, error) {
	rows, err := r.dbpool.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	appointments := make([]*domain.Appointment, 0)
	for rows.Next() {
		app := &domain.Appointment{}
		dst := []any{
			&app.ID, &app.UserID, &app.MachineID, &app.ManagerID, &app.RuleID, &app.StartTime, &app.EndTime, &app.Status,
			&app.Notes, &app.DecisionReason, &app.Result, &app.ResultNotes, &app.CancellationReason,
			&app.ReviewedBy, &app.ReviewedAt, &app.ResultedBy, &app.ResultedAt, &app.CreatedAt, &app.Version,
		}
		if err := rows.Scan(dst...); err != nil {
			return nil, err
		}
		appointments = append(appointments, app)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return appointments, nil
}

const appointmentColumns = `
	id, user_id, machine_id, manager_id, rule_id, start_time, end_time, status,
	notes, decision_reason, COALESCE(result, ''), result_notes, cancellation_reason,
	reviewed_by, reviewed_at, resulted_by, resulted_at, created_at, version
`

func (r *Repository) GetAppointmentsByUser(userID int64) ([]*domain.Appointment, error) {
	query := `SELECT ` + appointmentColumns + ` FROM appointments WHERE user_id = $1 ORDER BY start_time DESC`

	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(r.cfg.Database.QueryTimeout)*time.Second)
	defer cancel()

	return r.scanAppointments(ctx, query, userID)
}

func (r *Repository) GetAppointmentsByManager(managerID int64) ([]*domain.Appointment, error) {
	query := `SELECT ` + appointmentColumns + ` FROM appointments WHERE manager_id = $1 ORDER BY start_time DESC`

	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(r.cfg.Database.QueryTimeout)*time.Second)
	defer cancel()

	return r.scanAppointments(ctx, query, managerID)
}

func (r *Repository) GetPendingAppointments() ([]*domain.Appointment, error) {
	query := `SELECT ` + appointmentColumns + ` FROM appointments WHERE status = 'pending' ORDER BY start_time`

	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(r.cfg.Database.QueryTimeout)*time.Second)
	defer cancel()

	return r.scanAppointments(ctx, query)
}
