package utils

import (
	"github.com/sysu-ecnc-dev/makerspace-booking/backend/internal/domain"
	"github.com/sysu-ecnc-dev/makerspace-booking/backend/internal/schedule"
)

// ValidateMinuteRange 检查排班规则的分钟范围是否落在一天之内且结束晚于开始
func ValidateMinuteRange(startMinute, endMinute int32) error {
	if startMinute < 0 || endMinute > 24*60 || startMinute >= endMinute {
		return domain.ErrInvalidRange
	}
	return nil
}

// ValidateRuleAgainstExisting 检查新规则是否与同一管理员同一天的启用规则重叠。
// repository 在事务内还会再查一遍，这里用于不落库的场景（如种子数据生成）。
func ValidateRuleAgainstExisting(rule *domain.AvailabilityRule, existing []*domain.AvailabilityRule) error {
	if err := ValidateMinuteRange(rule.StartMinute, rule.EndMinute); err != nil {
		return err
	}

	for _, other := range existing {
		if !other.IsActive || other.ID == rule.ID {
			continue
		}
		if other.ManagerID != rule.ManagerID || other.DayOfWeek != rule.DayOfWeek {
			continue
		}
		if schedule.MinutesOverlap(rule.StartMinute, rule.EndMinute, other.StartMinute, other.EndMinute) {
			return domain.ErrOverlapConflict
		}
	}

	return nil
}
