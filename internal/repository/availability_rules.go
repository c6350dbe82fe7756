package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/sysu-ecnc-dev/makerspace-booking/backend/internal/domain"
)

// CreateAvailabilityRule 在事务内插入排班规则。
// 先对管理员身份加咨询锁，再检查与该管理员同一天的其他启用规则是否重叠，
// 避免两条重叠规则被并发创建。
func (r *Repository) CreateAvailabilityRule(rule *domain.AvailabilityRule) error {
	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(r.cfg.Database.TransactionTimeout)*time.Second)
	defer cancel()

	tx, err := r.dbpool.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if err := acquireEntityLocks(ctx, tx, advisoryLockKey("manager", rule.ManagerID)); err != nil {
		return err
	}

	query := `
		SELECT EXISTS (
			SELECT 1 FROM availability_rules
			WHERE manager_id = $1
				AND day_of_week = $2
				AND is_active = true
				AND start_minute < $4
				AND end_minute > $3
		)
	`

	var overlaps bool
	if err := tx.QueryRowContext(ctx, query, rule.ManagerID, rule.DayOfWeek, rule.StartMinute, rule.EndMinute).Scan(&overlaps); err != nil {
		return err
	}
	if overlaps {
		return domain.ErrOverlapConflict
	}

	query = `
		INSERT INTO availability_rules (manager_id, day_of_week, start_minute, end_minute, timezone, notes)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, is_active, created_at, version
	`

	args := []any{rule.ManagerID, rule.DayOfWeek, rule.StartMinute, rule.EndMinute, rule.Timezone, rule.Notes}
	dst := []any{&rule.ID, &rule.IsActive, &rule.CreatedAt, &rule.Version}
	if err := tx.QueryRowContext(ctx, query, args...).Scan(dst...); err != nil {
		return err
	}

	return tx.Commit()
}

func (r *Repository) GetAvailabilityRuleByID(id int64) (*domain.AvailabilityRule, error) {
	query := `
		SELECT manager_id, day_of_week, start_minute, end_minute, timezone, notes, is_active, created_at, version
		FROM availability_rules WHERE id = $1
	`

	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(r.cfg.Database.QueryTimeout)*time.Second)
	defer cancel()

	rule := &domain.AvailabilityRule{
		ID: id,
	}

	dst := []any{&rule.ManagerID, &rule.DayOfWeek, &rule.StartMinute, &rule.EndMinute, &rule.Timezone, &rule.Notes, &rule.IsActive, &rule.CreatedAt, &rule.Version}
	if err := r.dbpool.QueryRowContext(ctx, query, id).Scan(dst...); err != nil {
		return nil, err
	}

	return rule, nil
}

func (r *Repository) scanRules(ctx context.Context, query string, args ...any) ([]*domain.AvailabilityRule, error) {
	rows, err := r.dbpool.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	rules := make([]*domain.AvailabilityRule, 0)
	for rows.Next() {
		rule := &domain.AvailabilityRule{}
		dst := []any{&rule.ID, &rule.ManagerID, &rule.DayOfWeek, &rule.StartMinute, &rule.EndMinute, &rule.Timezone, &rule.Notes, &rule.IsActive, &rule.CreatedAt, &rule.Version}
		if err := rows.Scan(dst...); err != nil {
			return nil, err
		}
		rules = append(rules, rule)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return rules, nil
}

func (r *Repository) GetActiveAvailabilityRules() ([]*domain.AvailabilityRule, error) {
	query := `
		SELECT id, manager_id, day_of_week, start_minute, end_minute, timezone, notes, is_active, created_at, version
		FROM availability_rules
		WHERE is_active = true
		ORDER BY manager_id, day_of_week, start_minute
	`

	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(r.cfg.Database.QueryTimeout)*time.Second)
	defer cancel()

	return r.scanRules(ctx, query)
}

func (r *Repository) GetActiveAvailabilityRulesByManager(managerID int64) ([]*domain.AvailabilityRule, error) {
	query := `
		SELECT id, manager_id, day_of_week, start_minute, end_minute, timezone, notes, is_active, created_at, version
		FROM availability_rules
		WHERE manager_id = $1 AND is_active = true
		ORDER BY day_of_week, start_minute
	`

	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(r.cfg.Database.QueryTimeout)*time.Second)
	defer cancel()

	return r.scanRules(ctx, query, managerID)
}

// DeactivateAvailabilityRule 停用某管理员名下的规则，managerID 为 0 时不限制归属。
// 规则已经处于停用状态时直接返回原记录，重复停用不算错误。
func (r *Repository) DeactivateAvailabilityRule(ruleID int64, managerID int64) (*domain.AvailabilityRule, error) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(r.cfg.Database.QueryTimeout)*time.Second)
	defer cancel()

	query := `
		SELECT manager_id, day_of_week, start_minute, end_minute, timezone, notes, is_active, created_at, version
		FROM availability_rules
		WHERE id = $1 AND (manager_id = $2 OR $2 = 0)
	`

	rule := &domain.AvailabilityRule{
		ID: ruleID,
	}

	dst := []any{&rule.ManagerID, &rule.DayOfWeek, &rule.StartMinute, &rule.EndMinute, &rule.Timezone, &rule.Notes, &rule.IsActive, &rule.CreatedAt, &rule.Version}
	if err := r.dbpool.QueryRowContext(ctx, query, ruleID, managerID).Scan(dst...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}

	if !rule.IsActive {
		return rule, nil
	}

	query = `
		UPDATE availability_rules
		SET is_active = false, version = version + 1
		WHERE id = $1
		RETURNING is_active, version
	`

	if err := r.dbpool.QueryRowContext(ctx, query, ruleID).Scan(&rule.IsActive, &rule.Version); err != nil {
		return nil, err
	}

	return rule, nil
}
