package schedule

import (
	"sort"
	"time"

	"github.com/sysu-ecnc-dev/makerspace-booking/backend/internal/domain"
)

// AvailabilityInput 汇集一次可用时段查询需要的全部数据。
// 数据由调用方从存储中取出后传入，本包只做纯内存计算。
type AvailabilityInput struct {
	Rules []*domain.AvailabilityRule
	// 窗口内所有仍占用时段的预约
	Busy      []BusyInterval
	MachineID int64
	// 查询者的会员 ID，0 表示未指定会员
	MemberID    int64
	WindowStart time.Time
	WindowEnd   time.Time
	Duration    time.Duration
	Now         time.Time
}

// AvailableSlots 把所有启用中的规则展开为时段，剔除与已有预约在
// 管理员、设备或会员任一维度上冲突的时段，以及已经开始的时段，
// 最后按开始时间排序，开始时间相同时按管理员 ID 保证顺序稳定。
func AvailableSlots(cache *LocationCache, in AvailabilityInput) ([]Slot, error) {
	slots := make([]Slot, 0)

	for _, rule := range in.Rules {
		if !rule.IsActive {
			continue
		}

		loc, err := cache.Load(rule.Timezone)
		if err != nil {
			return nil, err
		}

		for _, slot := range ExpandRule(rule, loc, in.WindowStart, in.WindowEnd, in.Duration) {
			if !slot.Start.After(in.Now) {
				continue
			}
			if conflictsWithBusy(slot, in) {
				continue
			}
			slots = append(slots, slot)
		}
	}

	sort.Slice(slots, func(i, j int) bool {
		if !slots[i].Start.Equal(slots[j].Start) {
			return slots[i].Start.Before(slots[j].Start)
		}
		return slots[i].ManagerID < slots[j].ManagerID
	})

	return slots, nil
}

func conflictsWithBusy(slot Slot, in AvailabilityInput) bool {
	for _, busy := range in.Busy {
		if !Overlaps(slot.Start, slot.End, busy.Start, busy.End) {
			continue
		}
		if busy.ManagerID == slot.ManagerID || busy.MachineID == in.MachineID {
			return true
		}
		if in.MemberID != 0 && busy.UserID == in.MemberID {
			return true
		}
	}
	return false
}
