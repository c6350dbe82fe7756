package schedule

import "time"

// Overlaps 判断两个半开区间 [aStart, aEnd) 和 [bStart, bEnd) 是否相交。
// 首尾相接的区间不算冲突。
func Overlaps(aStart, aEnd, bStart, bEnd time.Time) bool {
	return aStart.Before(bEnd) && bStart.Before(aEnd)
}

// MinutesOverlap 是分钟区间版本的重叠判断，用于排班规则之间的冲突检测
func MinutesOverlap(aStart, aEnd, bStart, bEnd int32) bool {
	return aStart < bEnd && bStart < aEnd
}

// BusyInterval 是冲突检测的输入：一个已被占用的时段以及占用它的各方身份
type BusyInterval struct {
	Start     time.Time
	End       time.Time
	ManagerID int64
	MachineID int64
	UserID    int64
}
