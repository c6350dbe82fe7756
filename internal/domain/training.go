package domain

import "time"

// TrainingRequirement 是预约设备考核前必须完成的培训项目。
// 培训观看进度的跟踪由外部模块负责，本服务只读取完成情况。
type TrainingRequirement struct {
	ID        int64     `json:"id"`
	MachineID int64     `json:"machineID"`
	Title     string    `json:"title"`
	CreatedAt time.Time `json:"createdAt"`
}
