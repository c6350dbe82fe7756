package schedule

import (
	"testing"
	"time"

	"github.com/sysu-ecnc-dev/makerspace-booking/backend/internal/domain"
)

func TestExpandRuleFridayMorning(t *testing.T) {
	cache := NewLocationCache()
	loc := mustLoad(t, cache, "Asia/Shanghai")

	// 周五 09:00~11:00，时长 30 分钟，窗口覆盖 2024-05-10（周五）
	rule := &domain.AvailabilityRule{
		ID:          1,
		ManagerID:   7,
		DayOfWeek:   5,
		StartMinute: 9 * 60,
		EndMinute:   11 * 60,
		Timezone:    "Asia/Shanghai",
		IsActive:    true,
	}

	windowStart := time.Date(2024, time.May, 9, 0, 0, 0, 0, time.UTC)
	windowEnd := time.Date(2024, time.May, 11, 0, 0, 0, 0, time.UTC)

	slots := ExpandRule(rule, loc, windowStart, windowEnd, 30*time.Minute)
	if len(slots) != 4 {
		t.Fatalf("时段数量 = %d, 期望 4", len(slots))
	}

	// 上海 09:00 即 01:00 UTC
	first := time.Date(2024, time.May, 10, 1, 0, 0, 0, time.UTC)
	for i, slot := range slots {
		wantStart := first.Add(time.Duration(i) * 30 * time.Minute)
		if !slot.Start.Equal(wantStart) {
			t.Errorf("第 %d 个时段开始于 %v, 期望 %v", i, slot.Start, wantStart)
		}
		if slot.End.Sub(slot.Start) != 30*time.Minute {
			t.Errorf("第 %d 个时段时长错误", i)
		}
	}

	// 相邻时段必须首尾相接且互不重叠
	for i := 0; i+1 < len(slots); i++ {
		if !slots[i].End.Equal(slots[i+1].Start) {
			t.Errorf("第 %d 和第 %d 个时段没有首尾相接", i, i+1)
		}
	}
}

func TestExpandRuleDeterminism(t *testing.T) {
	cache := NewLocationCache()
	loc := mustLoad(t, cache, "America/New_York")

	rule := &domain.AvailabilityRule{
		ID: 2, ManagerID: 3, DayOfWeek: 0,
		StartMinute: 14 * 60, EndMinute: 22 * 60,
		Timezone: "America/New_York", IsActive: true,
	}
	windowStart := time.Date(2024, time.March, 4, 0, 0, 0, 0, time.UTC)
	windowEnd := time.Date(2024, time.March, 18, 0, 0, 0, 0, time.UTC)

	first := ExpandRule(rule, loc, windowStart, windowEnd, time.Hour)
	second := ExpandRule(rule, loc, windowStart, windowEnd, time.Hour)

	if len(first) != len(second) {
		t.Fatalf("两次展开数量不一致: %d vs %d", len(first), len(second))
	}
	for i := range first {
		if !first[i].Start.Equal(second[i].Start) || !first[i].End.Equal(second[i].End) {
			t.Fatalf("第 %d 个时段两次展开不一致", i)
		}
	}
}

func TestExpandRuleSpringForward(t *testing.T) {
	cache := NewLocationCache()
	loc := mustLoad(t, cache, "America/New_York")

	// 纽约 2024-03-10 凌晨 02:00 春季跳变，规则为周日 14:00~22:00。
	// 展开结果换算回当地时间后依然应当读作 14:00 到 21:00 整点开始，
	// 不能被夏令时跳变平移。
	rule := &domain.AvailabilityRule{
		ID: 3, ManagerID: 5, DayOfWeek: 0,
		StartMinute: 14 * 60, EndMinute: 22 * 60,
		Timezone: "America/New_York", IsActive: true,
	}
	windowStart := time.Date(2024, time.March, 10, 0, 0, 0, 0, time.UTC)
	windowEnd := time.Date(2024, time.March, 11, 12, 0, 0, 0, time.UTC)

	slots := ExpandRule(rule, loc, windowStart, windowEnd, time.Hour)
	if len(slots) != 8 {
		t.Fatalf("时段数量 = %d, 期望 8", len(slots))
	}

	// 跳变当天 14:00 EDT 即 18:00 UTC
	if want := time.Date(2024, time.March, 10, 18, 0, 0, 0, time.UTC); !slots[0].Start.Equal(want) {
		t.Errorf("首个时段开始于 %v, 期望 %v", slots[0].Start, want)
	}

	for i, slot := range slots {
		parts := PartsInZone(slot.Start, loc)
		if parts.Hour != 14+i || parts.Minute != 0 {
			t.Errorf("第 %d 个时段的当地时间为 %02d:%02d, 期望 %02d:00", i, parts.Hour, parts.Minute, 14+i)
		}
	}
}

func TestExpandRuleCrossesUTCDayBoundary(t *testing.T) {
	cache := NewLocationCache()
	loc := mustLoad(t, cache, "Asia/Shanghai")

	// 上海周六 00:30~02:30 在 UTC 下还是周五晚上，
	// 查询窗口只覆盖 UTC 的周五，也必须能找到这些时段
	rule := &domain.AvailabilityRule{
		ID: 4, ManagerID: 9, DayOfWeek: 6,
		StartMinute: 30, EndMinute: 150,
		Timezone: "Asia/Shanghai", IsActive: true,
	}
	windowStart := time.Date(2024, time.May, 10, 0, 0, 0, 0, time.UTC)
	windowEnd := time.Date(2024, time.May, 10, 20, 0, 0, 0, time.UTC)

	slots := ExpandRule(rule, loc, windowStart, windowEnd, time.Hour)
	if len(slots) != 2 {
		t.Fatalf("时段数量 = %d, 期望 2", len(slots))
	}
	if want := time.Date(2024, time.May, 10, 16, 30, 0, 0, time.UTC); !slots[0].Start.Equal(want) {
		t.Errorf("首个时段开始于 %v, 期望 %v", slots[0].Start, want)
	}
}

func TestExpandRuleClipsToWindow(t *testing.T) {
	cache := NewLocationCache()
	loc := mustLoad(t, cache, "Asia/Shanghai")

	rule := &domain.AvailabilityRule{
		ID: 5, ManagerID: 2, DayOfWeek: 5,
		StartMinute: 9 * 60, EndMinute: 11 * 60,
		Timezone: "Asia/Shanghai", IsActive: true,
	}

	// 窗口在当天 01:45 UTC（当地 09:45）截断，只剩前两个与窗口相交的时段
	windowStart := time.Date(2024, time.May, 10, 0, 0, 0, 0, time.UTC)
	windowEnd := time.Date(2024, time.May, 10, 1, 45, 0, 0, time.UTC)

	slots := ExpandRule(rule, loc, windowStart, windowEnd, 30*time.Minute)
	if len(slots) != 2 {
		t.Fatalf("时段数量 = %d, 期望 2", len(slots))
	}
}

func TestMatchSlot(t *testing.T) {
	cache := NewLocationCache()
	loc := mustLoad(t, cache, "Asia/Shanghai")

	rule := &domain.AvailabilityRule{
		ID: 6, ManagerID: 4, DayOfWeek: 5,
		StartMinute: 9 * 60, EndMinute: 11 * 60,
		Timezone: "Asia/Shanghai", IsActive: true,
	}
	duration := 30 * time.Minute

	tests := []struct {
		name  string
		start time.Time
		want  MatchResult
	}{
		{"网格上的首个时段", time.Date(2024, time.May, 10, 1, 0, 0, 0, time.UTC), MatchOK},
		{"网格上的末个时段", time.Date(2024, time.May, 10, 2, 30, 0, 0, time.UTC), MatchOK},
		{"偏移未对齐网格", time.Date(2024, time.May, 10, 1, 15, 0, 0, time.UTC), MatchMisaligned},
		{"越过规则结束时间", time.Date(2024, time.May, 10, 2, 45, 0, 0, time.UTC), MatchMisaligned},
		{"早于规则开始时间", time.Date(2024, time.May, 10, 0, 30, 0, 0, time.UTC), MatchOutside},
		{"星期不匹配", time.Date(2024, time.May, 11, 1, 0, 0, 0, time.UTC), MatchOutside},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			end, got := MatchSlot(rule, loc, tt.start, duration)
			if got != tt.want {
				t.Fatalf("MatchSlot = %v, 期望 %v", got, tt.want)
			}
			if got == MatchOK && !end.Equal(tt.start.Add(duration)) {
				t.Errorf("结束时刻 = %v, 期望 %v", end, tt.start.Add(duration))
			}
		})
	}
}
