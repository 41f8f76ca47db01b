package stock

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrInsufficientStock 请求扣减量超过可用量；拒绝且不产生任何变更。
	ErrInsufficientStock = errors.New("stock: insufficient stock")
	// ErrInsufficientData 分配时权威文件行数少于订单数量（防御性复查）。
	ErrInsufficientData = errors.New("stock: insufficient data in pool")
	// ErrNoValidEntries 手工录入文本没有任何非空行。
	ErrNoValidEntries = errors.New("stock: no valid entries")
)

// LineViolation 单行校验失败信息。行号按非空行序号计。
type LineViolation struct {
	Line   int    `json:"line"`
	Reason string `json:"reason"`
}

// ValidationError 手工录入格式校验失败；任何一行失败都不做部分合并。
type ValidationError struct {
	Format     string
	Violations []LineViolation
}

func (e *ValidationError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "stock: %s validation failed (%d lines)", e.Format, len(e.Violations))
	for i, v := range e.Violations {
		if i >= 5 {
			fmt.Fprintf(&b, "; and %d more", len(e.Violations)-i)
			break
		}
		fmt.Fprintf(&b, "; line %d: %s", v.Line, v.Reason)
	}
	return b.String()
}
