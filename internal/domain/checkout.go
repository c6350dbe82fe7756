package domain

import "time"

// Checkout 是会员通过考核后获得的长期设备使用资格，
// 与后续任何预约无关，只能由管理员撤销。
type Checkout struct {
	ID        int64      `json:"id"`
	UserID    int64      `json:"userID"`
	MachineID int64      `json:"machineID"`
	GrantedBy int64      `json:"grantedBy"`
	GrantedAt time.Time  `json:"grantedAt"`
	RevokedBy *int64     `json:"revokedBy"`
	RevokedAt *time.Time `json:"revokedAt"`
}
