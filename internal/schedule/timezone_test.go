package schedule

import (
	"testing"
	"time"
)

func mustLoad(t *testing.T, cache *LocationCache, name string) *time.Location {
	t.Helper()
	loc, err := cache.Load(name)
	if err != nil {
		t.Fatalf("加载时区 %s 失败: %v", name, err)
	}
	return loc
}

func TestZonedToUTC(t *testing.T) {
	cache := NewLocationCache()

	tests := []struct {
		name   string
		zone   string
		year   int
		month  time.Month
		day    int
		hour   int
		minute int
		want   time.Time
	}{
		{
			name: "无夏令时的固定偏移", zone: "Asia/Shanghai",
			year: 2024, month: time.May, day: 1, hour: 14, minute: 0,
			want: time.Date(2024, time.May, 1, 6, 0, 0, 0, time.UTC),
		},
		{
			name: "纽约冬令时", zone: "America/New_York",
			year: 2024, month: time.January, day: 15, hour: 9, minute: 0,
			want: time.Date(2024, time.January, 15, 14, 0, 0, 0, time.UTC),
		},
		{
			name: "纽约夏令时", zone: "America/New_York",
			year: 2024, month: time.July, day: 15, hour: 9, minute: 0,
			want: time.Date(2024, time.July, 15, 13, 0, 0, 0, time.UTC),
		},
		{
			name: "春季跳变当天下午", zone: "America/New_York",
			year: 2024, month: time.March, day: 10, hour: 14, minute: 0,
			want: time.Date(2024, time.March, 10, 18, 0, 0, 0, time.UTC),
		},
		{
			name: "秋季回拨当天下午", zone: "America/New_York",
			year: 2024, month: time.November, day: 3, hour: 14, minute: 0,
			want: time.Date(2024, time.November, 3, 19, 0, 0, 0, time.UTC),
		},
		{
			// 回拨时 01:30 出现两次，两趟修正稳定取第一次出现（仍处于夏令时）
			name: "秋季回拨的歧义时刻", zone: "America/New_York",
			year: 2024, month: time.November, day: 3, hour: 1, minute: 30,
			want: time.Date(2024, time.November, 3, 5, 30, 0, 0, time.UTC),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			loc := mustLoad(t, cache, tt.zone)
			got := ZonedToUTC(tt.year, tt.month, tt.day, tt.hour, tt.minute, loc)
			if !got.Equal(tt.want) {
				t.Errorf("ZonedToUTC = %v, 期望 %v", got, tt.want)
			}
		})
	}
}

func TestPartsInZone(t *testing.T) {
	cache := NewLocationCache()

	t.Run("本地日期边界与UTC日期边界不同", func(t *testing.T) {
		loc := mustLoad(t, cache, "Asia/Shanghai")
		// 2024-05-01 16:30 UTC 在上海已经是 5 月 2 日凌晨
		parts := PartsInZone(time.Date(2024, time.May, 1, 16, 30, 0, 0, time.UTC), loc)
		if parts.Day != 2 || parts.Hour != 0 || parts.Minute != 30 {
			t.Errorf("本地分量错误: %+v", parts)
		}
		if parts.Weekday != time.Thursday {
			t.Errorf("本地星期 = %v, 期望 %v", parts.Weekday, time.Thursday)
		}
	})

	t.Run("与ZonedToUTC互为往返", func(t *testing.T) {
		loc := mustLoad(t, cache, "America/New_York")
		utc := ZonedToUTC(2024, time.March, 10, 14, 0, loc)
		parts := PartsInZone(utc, loc)
		if parts.Year != 2024 || parts.Month != time.March || parts.Day != 10 || parts.Hour != 14 || parts.Minute != 0 {
			t.Errorf("往返后的本地分量错误: %+v", parts)
		}
	})
}

func TestLocationCacheReuse(t *testing.T) {
	cache := NewLocationCache()

	first, err := cache.Load("Asia/Shanghai")
	if err != nil {
		t.Fatalf("首次加载失败: %v", err)
	}
	second, err := cache.Load("Asia/Shanghai")
	if err != nil {
		t.Fatalf("二次加载失败: %v", err)
	}
	if first != second {
		t.Error("二次加载应当直接命中缓存")
	}

	if _, err := cache.Load("No/Such_Zone"); err == nil {
		t.Error("非法时区应当返回错误")
	}
}
