package repository

import (
	"context"
	"time"

	"github.com/sysu-ecnc-dev/makerspace-booking/backend/internal/domain"
)

func (r *Repository) CreateTrainingRequirement(req *domain.TrainingRequirement) error {
	query := `
		INSERT INTO training_requirements (machine_id, title)
		VALUES ($1, $2)
		RETURNING id, created_at
	`

	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(r.cfg.Database.QueryTimeout)*time.Second)
	defer cancel()

	return r.dbpool.QueryRowContext(ctx, query, req.MachineID, req.Title).Scan(&req.ID, &req.CreatedAt)
}

func (r *Repository) GetTrainingRequirementsByMachine(machineID int64) ([]*domain.TrainingRequirement, error) {
	query := `
		SELECT id, machine_id, title, created_at
		FROM training_requirements
		WHERE machine_id = $1
		ORDER BY id
	`

	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(r.cfg.Database.QueryTimeout)*time.Second)
	defer cancel()

	rows, err := r.dbpool.QueryContext(ctx, query, machineID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	requirements := make([]*domain.TrainingRequirement, 0)
	for rows.Next() {
		req := &domain.TrainingRequirement{}
		if err := rows.Scan(&req.ID, &req.MachineID, &req.Title, &req.CreatedAt); err != nil {
			return nil, err
		}
		requirements = append(requirements, req)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return requirements, nil
}

// MarkTrainingCompleted 写入培训完成记录，重复标记不算错误
func (r *Repository) MarkTrainingCompleted(userID, requirementID int64) error {
	query := `
		INSERT INTO training_completions (user_id, requirement_id)
		VALUES ($1, $2)
		ON CONFLICT (user_id, requirement_id) DO NOTHING
	`

	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(r.cfg.Database.QueryTimeout)*time.Second)
	defer cancel()

	_, err := r.dbpool.ExecContext(ctx, query, userID, requirementID)
	return err
}

// GetMissingTrainingTitles 返回会员尚未完成的培训项目名称。
// 培训观看进度由外部模块写入 training_completions，这里只读取。
func (r *Repository) GetMissingTrainingTitles(userID, machineID int64) ([]string, error) {
	query := `
		SELECT tr.title
		FROM training_requirements tr
		WHERE tr.machine_id = $1
			AND NOT EXISTS (
				SELECT 1 FROM training_completions tc
				WHERE tc.requirement_id = tr.id AND tc.user_id = $2
			)
		ORDER BY tr.id
	`

	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(r.cfg.Database.QueryTimeout)*time.Second)
	defer cancel()

	rows, err := r.dbpool.QueryContext(ctx, query, machineID, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	titles := make([]string, 0)
	for rows.Next() {
		var title string
		if err := rows.Scan(&title); err != nil {
			return nil, err
		}
		titles = append(titles, title)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return titles, nil
}
