package schedule

import (
	"sync"
	"time"
)

// LocationCache 缓存已加载的 IANA 时区，避免重复读取时区数据库。
// 作为显式对象由调用方持有，不使用包级的全局缓存，方便测试时各自构造。
type LocationCache struct {
	mu        sync.RWMutex
	locations map[string]*time.Location
}

func NewLocationCache() *LocationCache {
	return &LocationCache{
		locations: make(map[string]*time.Location),
	}
}

func (c *LocationCache) Load(name string) (*time.Location, error) {
	c.mu.RLock()
	loc, exists := c.locations[name]
	c.mu.RUnlock()
	if exists {
		return loc, nil
	}

	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	c.locations[name] = loc
	c.mu.Unlock()

	return loc, nil
}

// ZonedToUTC 把某时区下的墙上时钟时刻换算为绝对的 UTC 时刻。
// 先假设零偏移得到初始猜测，查出该猜测时刻在目标时区的实际偏移并减去，
// 再检查换算结果处的偏移是否一致；不一致说明墙上时刻落在夏令时跳变附近，
// 用修正后的偏移重算一次。两趟修正足以覆盖 spring forward 和 fall back 两种边界。
func ZonedToUTC(year int, month time.Month, day, hour, minute int, loc *time.Location) time.Time {
	guess := time.Date(year, month, day, hour, minute, 0, 0, time.UTC)

	_, offset := guess.In(loc).Zone()
	utc := guess.Add(-time.Duration(offset) * time.Second)

	_, corrected := utc.In(loc).Zone()
	if corrected != offset {
		utc = guess.Add(-time.Duration(corrected) * time.Second)
	}

	return utc
}

// ZonedParts 是一个 UTC 时刻在某时区本地日历下的各个分量
type ZonedParts struct {
	Year    int
	Month   time.Month
	Day     int
	Hour    int
	Minute  int
	Weekday time.Weekday
}

// PartsInZone 按时区的本地日历拆解一个时刻。
// 注意不能用 UTC 日历，UTC 的日期边界和本地日期边界并不相同。
func PartsInZone(t time.Time, loc *time.Location) ZonedParts {
	local := t.In(loc)
	year, month, day := local.Date()

	return ZonedParts{
		Year:    year,
		Month:   month,
		Day:     day,
		Hour:    local.Hour(),
		Minute:  local.Minute(),
		Weekday: local.Weekday(),
	}
}
