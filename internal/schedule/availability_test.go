package schedule

import (
	"testing"
	"time"

	"github.com/sysu-ecnc-dev/makerspace-booking/backend/internal/domain"
)

// 周五 09:00~11:00（上海时区）的规则，2024-05-10 即为周五
func fridayRule(id, managerID int64) *domain.AvailabilityRule {
	return &domain.AvailabilityRule{
		ID:          id,
		ManagerID:   managerID,
		DayOfWeek:   5,
		StartMinute: 9 * 60,
		EndMinute:   11 * 60,
		Timezone:    "Asia/Shanghai",
		IsActive:    true,
	}
}

func TestAvailableSlotsFiltering(t *testing.T) {
	cache := NewLocationCache()

	windowStart := time.Date(2024, time.May, 9, 0, 0, 0, 0, time.UTC)
	windowEnd := time.Date(2024, time.May, 11, 0, 0, 0, 0, time.UTC)
	now := time.Date(2024, time.May, 1, 0, 0, 0, 0, time.UTC)
	// 当地 09:00 即 01:00 UTC
	nine := time.Date(2024, time.May, 10, 1, 0, 0, 0, time.UTC)

	in := AvailabilityInput{
		Rules:       []*domain.AvailabilityRule{fridayRule(1, 7)},
		MachineID:   100,
		MemberID:    200,
		WindowStart: windowStart,
		WindowEnd:   windowEnd,
		Duration:    30 * time.Minute,
		Now:         now,
	}

	t.Run("无冲突时产出全部时段", func(t *testing.T) {
		slots, err := AvailableSlots(cache, in)
		if err != nil {
			t.Fatal(err)
		}
		if len(slots) != 4 {
			t.Fatalf("时段数量 = %d, 期望 4", len(slots))
		}
	})

	t.Run("同管理员的占用剔除对应时段", func(t *testing.T) {
		busy := in
		busy.Busy = []BusyInterval{{Start: nine, End: nine.Add(30 * time.Minute), ManagerID: 7, MachineID: 999, UserID: 999}}
		slots, err := AvailableSlots(cache, busy)
		if err != nil {
			t.Fatal(err)
		}
		if len(slots) != 3 {
			t.Fatalf("时段数量 = %d, 期望 3", len(slots))
		}
		for _, slot := range slots {
			if slot.Start.Equal(nine) {
				t.Error("被占用的时段没有被剔除")
			}
		}
	})

	t.Run("同设备的占用剔除对应时段", func(t *testing.T) {
		busy := in
		busy.Busy = []BusyInterval{{Start: nine, End: nine.Add(time.Hour), ManagerID: 999, MachineID: 100, UserID: 999}}
		slots, err := AvailableSlots(cache, busy)
		if err != nil {
			t.Fatal(err)
		}
		// 一小时的占用覆盖前两个 30 分钟时段
		if len(slots) != 2 {
			t.Fatalf("时段数量 = %d, 期望 2", len(slots))
		}
	})

	t.Run("同会员的占用剔除对应时段", func(t *testing.T) {
		busy := in
		busy.Busy = []BusyInterval{{Start: nine, End: nine.Add(30 * time.Minute), ManagerID: 999, MachineID: 999, UserID: 200}}
		slots, err := AvailableSlots(cache, busy)
		if err != nil {
			t.Fatal(err)
		}
		if len(slots) != 3 {
			t.Fatalf("时段数量 = %d, 期望 3", len(slots))
		}
	})

	t.Run("未指定会员时不做会员维度过滤", func(t *testing.T) {
		busy := in
		busy.MemberID = 0
		busy.Busy = []BusyInterval{{Start: nine, End: nine.Add(30 * time.Minute), ManagerID: 999, MachineID: 999, UserID: 200}}
		slots, err := AvailableSlots(cache, busy)
		if err != nil {
			t.Fatal(err)
		}
		if len(slots) != 4 {
			t.Fatalf("时段数量 = %d, 期望 4", len(slots))
		}
	})

	t.Run("已经开始的时段被剔除", func(t *testing.T) {
		started := in
		// 查询时已经过了 09:20，首个时段开始于 09:00 不再可约
		started.Now = nine.Add(20 * time.Minute)
		slots, err := AvailableSlots(cache, started)
		if err != nil {
			t.Fatal(err)
		}
		if len(slots) != 3 {
			t.Fatalf("时段数量 = %d, 期望 3", len(slots))
		}
		if !slots[0].Start.Equal(nine.Add(30 * time.Minute)) {
			t.Errorf("首个时段开始于 %v, 期望 %v", slots[0].Start, nine.Add(30*time.Minute))
		}
	})

	t.Run("停用的规则不参与展开", func(t *testing.T) {
		inactive := fridayRule(2, 8)
		inactive.IsActive = false
		withInactive := in
		withInactive.Rules = []*domain.AvailabilityRule{fridayRule(1, 7), inactive}
		slots, err := AvailableSlots(cache, withInactive)
		if err != nil {
			t.Fatal(err)
		}
		if len(slots) != 4 {
			t.Fatalf("时段数量 = %d, 期望 4", len(slots))
		}
	})
}

func TestAvailableSlotsOrdering(t *testing.T) {
	cache := NewLocationCache()

	in := AvailabilityInput{
		// 两个管理员同一时间窗口，按管理员 ID 稳定排序
		Rules:       []*domain.AvailabilityRule{fridayRule(2, 9), fridayRule(1, 3)},
		MachineID:   100,
		WindowStart: time.Date(2024, time.May, 9, 0, 0, 0, 0, time.UTC),
		WindowEnd:   time.Date(2024, time.May, 11, 0, 0, 0, 0, time.UTC),
		Duration:    30 * time.Minute,
		Now:         time.Date(2024, time.May, 1, 0, 0, 0, 0, time.UTC),
	}

	slots, err := AvailableSlots(cache, in)
	if err != nil {
		t.Fatal(err)
	}
	if len(slots) != 8 {
		t.Fatalf("时段数量 = %d, 期望 8", len(slots))
	}

	for i := 0; i+1 < len(slots); i++ {
		if slots[i].Start.After(slots[i+1].Start) {
			t.Fatalf("第 %d 个时段的开始时间晚于第 %d 个", i, i+1)
		}
		if slots[i].Start.Equal(slots[i+1].Start) && slots[i].ManagerID >= slots[i+1].ManagerID {
			t.Fatalf("开始时间相同时应当按管理员 ID 升序")
		}
	}
}
