package schedule

import (
	"time"

	"github.com/sysu-ecnc-dev/makerspace-booking/backend/internal/domain"
)

// Slot 是从排班规则展开出来的一个具体的可预约时段，[Start, End) 为 UTC 时刻
type Slot struct {
	Start     time.Time `json:"startTime"`
	End       time.Time `json:"endTime"`
	RuleID    int64     `json:"ruleID"`
	ManagerID int64     `json:"managerID"`
}

// ExpandRule 把一条每周重复的排班规则展开成查询窗口内的具体时段序列。
// 纯函数：相同输入永远产生相同的有序结果。
//
// 以规则时区逐个本地日历日遍历，窗口两端各外扩一天，
// 因为本地时段可能跨过 UTC 日期边界落进窗口里。
// 命中规则星期的日子先把本地的开始/结束分钟换算为 UTC 区间，
// 再用固定时长从区间头部连续铺设时段，不跨过本地结束分钟，
// 最后丢弃与查询窗口完全不相交的时段。
func ExpandRule(rule *domain.AvailabilityRule, loc *time.Location, windowStart, windowEnd time.Time, duration time.Duration) []Slot {
	slots := make([]Slot, 0)
	if !windowEnd.After(windowStart) || duration <= 0 {
		return slots
	}

	// 取本地正午作为游标锚点，AddDate 跨过夏令时边界时日期不会漂移
	startParts := PartsInZone(windowStart, loc)
	cursor := time.Date(startParts.Year, startParts.Month, startParts.Day, 12, 0, 0, 0, loc).AddDate(0, 0, -1)
	limit := windowEnd.In(loc).AddDate(0, 0, 1)

	for !cursor.After(limit) {
		if int32(cursor.Weekday()) == rule.DayOfWeek {
			year, month, day := cursor.Date()
			dayStart := ZonedToUTC(year, month, day, int(rule.StartMinute)/60, int(rule.StartMinute)%60, loc)
			dayEnd := ZonedToUTC(year, month, day, int(rule.EndMinute)/60, int(rule.EndMinute)%60, loc)

			for s := dayStart; !s.Add(duration).After(dayEnd); s = s.Add(duration) {
				e := s.Add(duration)
				if e.After(windowStart) && s.Before(windowEnd) {
					slots = append(slots, Slot{
						Start:     s,
						End:       e,
						RuleID:    rule.ID,
						ManagerID: rule.ManagerID,
					})
				}
			}
		}
		cursor = cursor.AddDate(0, 0, 1)
	}

	return slots
}

type MatchResult int

const (
	// MatchOutside 表示开始时刻不在规则覆盖的时间窗口内
	MatchOutside MatchResult = iota
	// MatchMisaligned 表示开始时刻在窗口内但没有对齐时长网格
	MatchMisaligned
	// MatchOK 表示时段合法
	MatchOK
)

// MatchSlot 校验一个期望的开始时刻是否恰好落在规则的时间网格上：
// 本地星期匹配、相对规则开始分钟的偏移是时长的整数倍、且整个时段不越过结束分钟。
// 校验通过时返回时段的结束时刻。
func MatchSlot(rule *domain.AvailabilityRule, loc *time.Location, start time.Time, duration time.Duration) (time.Time, MatchResult) {
	parts := PartsInZone(start, loc)
	if int32(parts.Weekday) != rule.DayOfWeek {
		return time.Time{}, MatchOutside
	}

	dayStart := ZonedToUTC(parts.Year, parts.Month, parts.Day, int(rule.StartMinute)/60, int(rule.StartMinute)%60, loc)
	dayEnd := ZonedToUTC(parts.Year, parts.Month, parts.Day, int(rule.EndMinute)/60, int(rule.EndMinute)%60, loc)

	if start.Before(dayStart) || !start.Before(dayEnd) {
		return time.Time{}, MatchOutside
	}

	end := start.Add(duration)
	if start.Sub(dayStart)%duration != 0 || end.After(dayEnd) {
		return time.Time{}, MatchMisaligned
	}

	return end, MatchOK
}
