package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/sysu-ecnc-dev/makerspace-booking/backend/internal/domain"
)

// hasBlockingReservationConflict 检查给定时段是否与该设备上
// pending/approved/confirmed 状态的其他机时预约相交
func hasBlockingReservationConflict(ctx context.Context, tx *sql.Tx, res *domain.Reservation, excludeID int64) (bool, error) {
	query := `
		SELECT EXISTS (
			SELECT 1 FROM reservations
			WHERE machine_id = $1
				AND id <> $2
				AND status IN ('pending', 'approved', 'confirmed')
				AND start_time < $4
				AND end_time > $3
		)
	`

	var conflict bool
	if err := tx.QueryRowContext(ctx, query, res.MachineID, excludeID, res.StartTime, res.EndTime).Scan(&conflict); err != nil {
		return false, err
	}
	return conflict, nil
}

// CreateReservation 提交一条机时预约。和考核预约用同样的套路：
// 事务内按 设备 -> 会员 的顺序加咨询锁，复查冲突后再插入。
func (r *Repository) CreateReservation(res *domain.Reservation) error {
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
		advisoryLockKey("machine", res.MachineID),
		advisoryLockKey("member", res.UserID),
	); err != nil {
		return err
	}

	conflict, err := hasBlockingReservationConflict(ctx, tx, res, 0)
	if err != nil {
		return err
	}
	if conflict {
		return domain.ErrSlotConflict
	}

	query := `
		INSERT INTO reservations (user_id, machine_id, start_time, end_time, status, notes)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at, version
	`

	res.Status = domain.ReservationStatusPending
	args := []any{res.UserID, res.MachineID, res.StartTime, res.EndTime, res.Status, res.Notes}
	if err := tx.QueryRowContext(ctx, query, args...).Scan(&res.ID, &res.CreatedAt, &res.Version); err != nil {
		return err
	}

	return tx.Commit()
}

func lockReservationStatus(ctx context.Context, tx *sql.Tx, id int64) (domain.ReservationStatus, error) {
	var status domain.ReservationStatus
	query := `SELECT status FROM reservations WHERE id = $1 FOR UPDATE`
	if err := tx.QueryRowContext(ctx, query, id).Scan(&status); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", domain.ErrNotFound
		}
		return "", err
	}
	return status, nil
}

// ModerateReservation 审核机时预约。只有批准需要复查冲突：
// 待审核期间同一时段可能已经被别的预约抢先批准。
func (r *Repository) ModerateReservation(res *domain.Reservation, reviewerID int64, decision domain.ReservationStatus, reason string, reviewNotes string) error {
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
		advisoryLockKey("machine", res.MachineID),
		advisoryLockKey("member", res.UserID),
	); err != nil {
		return err
	}

	status, err := lockReservationStatus(ctx, tx, res.ID)
	if err != nil {
		return err
	}
	if status != domain.ReservationStatusPending {
		return domain.ErrNotPending
	}

	if decision == domain.ReservationStatusApproved {
		conflict, err := hasBlockingReservationConflict(ctx, tx, res, res.ID)
		if err != nil {
			return err
		}
		if conflict {
			return domain.ErrSlotConflict
		}
	}

	query := `
		UPDATE reservations
		SET status = $1, decision_reason = $2, review_notes = $3, reviewed_by = $4, reviewed_at = now(), version = version + 1
		WHERE id = $5
		RETURNING reviewed_at, version
	`

	if err := tx.QueryRowContext(ctx, query, decision, reason, reviewNotes, reviewerID, res.ID).Scan(&res.ReviewedAt, &res.Version); err != nil {
		return err
	}
	res.Status = decision
	res.DecisionReason = reason
	res.ReviewNotes = reviewNotes
	res.ReviewedBy = &reviewerID

	return tx.Commit()
}

// CancelReservationByMember 会员自助取消，只允许取消未开始的待审核预约
func (r *Repository) CancelReservationByMember(res *domain.Reservation, reason string) error {
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
		advisoryLockKey("machine", res.MachineID),
		advisoryLockKey("member", res.UserID),
	); err != nil {
		return err
	}

	status, err := lockReservationStatus(ctx, tx, res.ID)
	if err != nil {
		return err
	}
	if !status.CanTransitionTo(domain.ReservationStatusCancelled) {
		return domain.ErrNotCancellable
	}
	if !res.StartTime.After(time.Now()) {
		return domain.ErrAlreadyStarted
	}

	query := `
		UPDATE reservations
		SET status = $1, decision_reason = $2, version = version + 1
		WHERE id = $3
		RETURNING version
	`

	if err := tx.QueryRowContext(ctx, query, domain.ReservationStatusCancelled, reason, res.ID).Scan(&res.Version); err != nil {
		return err
	}
	res.Status = domain.ReservationStatusCancelled
	res.DecisionReason = reason

	return tx.Commit()
}

const reservationColumns = `
	id, user_id, machine_id, start_time, end_time, status,
	notes, decision_reason, review_notes, reviewed_by, reviewed_at, created_at, version
`

func (r *Repository) scanReservations(ctx context.Context, query string, args ...any) ([]*domain.Reservation, error) {
	rows, err := r.dbpool.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	reservations := make([]*domain.Reservation, 0)
	for rows.Next() {
		res := &domain.Reservation{}
		dst := []any{
			&res.ID, &res.UserID, &res.MachineID, &res.StartTime, &res.EndTime, &res.Status,
			&res.Notes, &res.DecisionReason, &res.ReviewNotes, &res.ReviewedBy, &res.ReviewedAt, &res.CreatedAt, &res.Version,
		}
		if err := rows.Scan(dst...); err != nil {
			return nil, err
		}
		reservations = append(reservations, res)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return reservations, nil
}

func (r *Repository) GetReservationByID(id int64) (*domain.Reservation, error) {
	query := `SELECT ` + reservationColumns + ` FROM reservations WHERE id = $1`

	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(r.cfg.Database.QueryTimeout)*time.Second)
	defer cancel()

	reservations, err := r.scanReservations(ctx, query, id)
	if err != nil {
		return nil, err
	}
	if len(reservations) == 0 {
		return nil, sql.ErrNoRows
	}

	return reservations[0], nil
}

func (r *Repository) GetReservationsByUser(userID int64) ([]*domain.Reservation, error) {
	query := `SELECT ` + reservationColumns + ` FROM reservations WHERE user_id = $1 ORDER BY start_time DESC`

	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(r.cfg.Database.QueryTimeout)*time.Second)
	defer cancel()

	return r.scanReservations(ctx, query, userID)
}

func (r *Repository) GetPendingReservations() ([]*domain.Reservation, error) {
	query := `SELECT ` + reservationColumns + ` FROM reservations WHERE status = 'pending' ORDER BY start_time`

	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(r.cfg.Database.QueryTimeout)*time.Second)
	defer cancel()

	return r.scanReservations(ctx, query)
}
