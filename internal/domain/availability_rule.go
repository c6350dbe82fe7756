package domain

import "time"

// AvailabilityRule 是设备管理员每周重复开放的考核时间段，
// 开始和结束时间以规则时区下的当天分钟数表示（0~1440）。
type AvailabilityRule struct {
	ID        int64 `json:"id"`
	ManagerID int64 `json:"managerID"`
	// 0 = 周日，6 = 周六
	DayOfWeek   int32  `json:"dayOfWeek"`
	StartMinute int32  `json:"startMinute"`
	EndMinute   int32  `json:"endMinute"`
	Timezone    string `json:"timezone"`
	Notes       string `json:"notes"`
	// 规则只会被停用，不会被删除，保证历史预约的引用始终有效
	IsActive  bool      `json:"isActive"`
	CreatedAt time.Time `json:"createdAt"`
	Version   int32     `json:"-"`
}
