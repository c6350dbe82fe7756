package domain

import "time"

type Machine struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Location    string `json:"location"`
	// 考核预约的固定时长（分钟），由该设备的培训要求决定
	TrainingDuration int32     `json:"trainingDuration"`
	IsActive         bool      `json:"isActive"`
	CreatedAt        time.Time `json:"createdAt"`
	Version          int32     `json:"-"`
}
