package utils

import (
	"errors"
	"testing"

	"github.com/sysu-ecnc-dev/makerspace-booking/backend/internal/domain"
)

func TestValidateMinuteRange(t *testing.T) {
	tests := []struct {
		name        string
		startMinute int32
		endMinute   int32
		wantErr     bool
	}{
		{name: "正常范围", startMinute: 9 * 60, endMinute: 12 * 60, wantErr: false},
		{name: "整天", startMinute: 0, endMinute: 24 * 60, wantErr: false},
		{name: "开始为负", startMinute: -1, endMinute: 60, wantErr: true},
		{name: "结束超过一天", startMinute: 0, endMinute: 24*60 + 1, wantErr: true},
		{name: "结束等于开始", startMinute: 600, endMinute: 600, wantErr: true},
		{name: "结束早于开始", startMinute: 700, endMinute: 600, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateMinuteRange(tt.startMinute, tt.endMinute)
			if tt.wantErr && !errors.Is(err, domain.ErrInvalidRange) {
				t.Errorf("期望 ErrInvalidRange，实际为 %v", err)
			}
			if !tt.wantErr && err != nil {
				t.Errorf("期望无错误，实际为 %v", err)
			}
		})
	}
}

func TestValidateRuleAgainstExisting(t *testing.T) {
	existing := []*domain.AvailabilityRule{
		{ID: 1, ManagerID: 10, DayOfWeek: 1, StartMinute: 9 * 60, EndMinute: 12 * 60, IsActive: true},
		{ID: 2, ManagerID: 10, DayOfWeek: 1, StartMinute: 14 * 60, EndMinute: 17 * 60, IsActive: false},
		{ID: 3, ManagerID: 20, DayOfWeek: 1, StartMinute: 9 * 60, EndMinute: 12 * 60, IsActive: true},
	}

	tests := []struct {
		name    string
		rule    *domain.AvailabilityRule
		wantErr error
	}{
		{
			name: "与启用规则重叠",
			rule:    &domain.AvailabilityRule{ManagerID: 10, DayOfWeek: 1, StartMinute: 11 * 60, EndMinute: 13 * 60},
			wantErr: domain.ErrOverlapConflict,
		},
		{
			name:    "紧邻不算重叠",
			rule:    &domain.AvailabilityRule{ManagerID: 10, DayOfWeek: 1, StartMinute: 12 * 60, EndMinute: 13 * 60},
			wantErr: nil,
		},
		{
			name:    "与停用规则重叠不算冲突",
			rule:    &domain.AvailabilityRule{ManagerID: 10, DayOfWeek: 1, StartMinute: 14 * 60, EndMinute: 15 * 60},
			wantErr: nil,
		},
		{
			name:    "不同星期不冲突",
			rule:    &domain.AvailabilityRule{ManagerID: 10, DayOfWeek: 2, StartMinute: 9 * 60, EndMinute: 12 * 60},
			wantErr: nil,
		},
		{
			name:    "不同管理员不冲突",
			rule:    &domain.AvailabilityRule{ManagerID: 30, DayOfWeek: 1, StartMinute: 9 * 60, EndMinute: 12 * 60},
			wantErr: nil,
		},
		{
			name:    "排除规则自身",
			rule:    &domain.AvailabilityRule{ID: 1, ManagerID: 10, DayOfWeek: 1, StartMinute: 9 * 60, EndMinute: 12 * 60},
			wantErr: nil,
		},
		{
			name:    "范围本身无效",
			rule:    &domain.AvailabilityRule{ManagerID: 10, DayOfWeek: 1, StartMinute: 12 * 60, EndMinute: 9 * 60},
			wantErr: domain.ErrInvalidRange,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateRuleAgainstExisting(tt.rule, existing)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("期望 %v，实际为 %v", tt.wantErr, err)
			}
		})
	}
}
