package repository

import (
	"context"
	"time"

	"github.com/sysu-ecnc-dev/makerspace-booking/backend/internal/domain"
)

func (r *Repository) CreateMachine(machine *domain.Machine) error {
	query := `
		INSERT INTO machines (name, description, location, training_duration)
		VALUES ($1, $2, $3, $4)
		RETURNING id, is_active, created_at, version
	`

	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(r.cfg.Database.QueryTimeout)*time.Second)
	defer cancel()

	args := []any{machine.Name, machine.Description, machine.Location, machine.TrainingDuration}
	dst := []any{&machine.ID, &machine.IsActive, &machine.CreatedAt, &machine.Version}
	if err := r.dbpool.QueryRowContext(ctx, query, args...).Scan(dst...); err != nil {
		return err
	}

	return nil
}

func (r *Repository) GetMachineByID(id int64) (*domain.Machine, error) {
	query := `
		SELECT name, description, location, training_duration, is_active, created_at, version
		FROM machines WHERE id = $1
	`

	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(r.cfg.Database.QueryTimeout)*time.Second)
	defer cancel()

	machine := &domain.Machine{
		ID: id,
	}

	dst := []any{&machine.Name, &machine.Description, &machine.Location, &machine.TrainingDuration, &machine.IsActive, &machine.CreatedAt, &machine.Version}
	if err := r.dbpool.QueryRowContext(ctx, query, id).Scan(dst...); err != nil {
		return nil, err
	}

	return machine, nil
}

func (r *Repository) GetAllMachines() ([]*domain.Machine, error) {
	query := `
		SELECT id, name, description, location, training_duration, is_active, created_at, version
		FROM machines ORDER BY id
	`

	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(r.cfg.Database.QueryTimeout)*time.Second)
	defer cancel()

	rows, err := r.dbpool.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	machines := make([]*domain.Machine, 0)
	for rows.Next() {
		machine := &domain.Machine{}
		dst := []any{&machine.ID, &machine.Name, &machine.Description, &machine.Location, &machine.TrainingDuration, &machine.IsActive, &machine.CreatedAt, &machine.Version}
		if err := rows.Scan(dst...); err != nil {
			return nil, err
		}
		machines = append(machines, machine)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return machines, nil
}

func (r *Repository) UpdateMachine(machine *domain.Machine) error {
	query := `
		UPDATE machines
		SET
			name = $1,
			description = $2,
			location = $3,
			training_duration = $4,
			is_active = $5,
			version = version + 1
		WHERE id = $6 AND version = $7
		RETURNING created_at, version
	`

	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(r.cfg.Database.QueryTimeout)*time.Second)
	defer cancel()

	args := []any{machine.Name, machine.Description, machine.Location, machine.TrainingDuration, machine.IsActive, machine.ID, machine.Version}
	dst := []any{&machine.CreatedAt, &machine.Version}
	if err := r.dbpool.QueryRowContext(ctx, query, args...).Scan(dst...); err != nil {
		return err
	}

	return nil
}
