package schedule

import (
	"testing"
	"time"
)

func TestOverlaps(t *testing.T) {
	base := time.Date(2024, time.May, 10, 9, 0, 0, 0, time.UTC)
	at := func(minutes int) time.Time { return base.Add(time.Duration(minutes) * time.Minute) }

	tests := []struct {
		name                           string
		aStart, aEnd, bStart, bEnd     time.Time
		want                           bool
	}{
		{"完全重叠", at(0), at(30), at(0), at(30), true},
		{"部分重叠", at(0), at(30), at(15), at(45), true},
		{"包含关系", at(0), at(60), at(15), at(30), true},
		{"首尾相接不算冲突", at(0), at(30), at(30), at(60), false},
		{"反向首尾相接不算冲突", at(30), at(60), at(0), at(30), false},
		{"完全分离", at(0), at(30), at(60), at(90), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Overlaps(tt.aStart, tt.aEnd, tt.bStart, tt.bEnd); got != tt.want {
				t.Errorf("Overlaps = %v, 期望 %v", got, tt.want)
			}
			// 区间交换后结果应当对称
			if got := Overlaps(tt.bStart, tt.bEnd, tt.aStart, tt.aEnd); got != tt.want {
				t.Errorf("交换后 Overlaps = %v, 期望 %v", got, tt.want)
			}
		})
	}
}

func TestMinutesOverlap(t *testing.T) {
	tests := []struct {
		name                       string
		aStart, aEnd, bStart, bEnd int32
		want                       bool
	}{
		{"重叠", 540, 660, 600, 720, true},
		{"首尾相接", 540, 660, 660, 780, false},
		{"分离", 540, 600, 720, 780, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := MinutesOverlap(tt.aStart, tt.aEnd, tt.bStart, tt.bEnd); got != tt.want {
				t.Errorf("MinutesOverlap = %v, 期望 %v", got, tt.want)
			}
		})
	}
}
