package domain

import (
	"errors"
	"fmt"
	"strings"
)

// 预约引擎的各类业务错误，repository 返回这些错误，
// handler 层通过 errors.Is 将其翻译为响应消息。
var (
	// 校验类错误，调用方修正输入后即可重试
	ErrInvalidRange     = errors.New("时间范围无效")
	ErrSlotMisaligned   = errors.New("预约时段未对齐规则的时间网格")
	ErrInvalidTimeRange = errors.New("结束时间必须晚于开始时间")

	// 资源类错误
	ErrNotFound         = errors.New("记录不存在")
	ErrInactiveResource = errors.New("资源已停用")

	// 状态冲突类错误，在并发场景下会频繁出现，
	// 调用方应当重新查询可用时段后换一个时段重试，本服务不会自动重试
	ErrSlotConflict    = errors.New("预约时段冲突")
	ErrSlotUnavailable = errors.New("预约时段不可用")
	ErrOverlapConflict = errors.New("与已有的排班规则重叠")
	ErrNotPending      = errors.New("预约不处于待审核状态")
	ErrNotAccepted     = errors.New("预约不处于已通过状态")
	ErrNotCancellable  = errors.New("预约已无法取消")
	ErrAlreadyStarted  = errors.New("预约时段已经开始")

	// 资格类错误
	ErrAlreadyCheckedOut = errors.New("已经拥有该设备的使用资格")
	ErrReasonRequired    = errors.New("必须填写理由")
	ErrForbidden         = errors.New("没有权限执行该操作")
)

// TrainingIncompleteError 携带未完成的培训项目名称，方便前端提示会员补齐
type TrainingIncompleteError struct {
	Reasons []string
}

func (e *TrainingIncompleteError) Error() string {
	return fmt.Sprintf("培训未完成: %s", strings.Join(e.Reasons, "、"))
}
