package order

import "fmt"

// Status represents order lifecycle.
type Status string

const (
	StatusPending    Status = "PENDING"    // 待交易所确认
	StatusOpen       Status = "OPEN"       // 已挂单
	StatusPartial    Status = "PARTIAL"    // 部分成交
	StatusFilled     Status = "FILLED"     // 全部成交（终态）
	StatusCancelling Status = "CANCELLING" // 撤单中
	StatusCancelled  Status = "CANCELLED"  // 已撤销（终态）
	StatusRejected   Status = "REJECTED"   // 被拒绝（终态）
)

// IsTerminal 终态不再转换
func (s Status) IsTerminal() bool {
	return s == StatusFilled || s == StatusCancelled || s == StatusRejected
}

// IsActive reports whether the order is on the book and can receive fills.
func (s Status) IsActive() bool {
	return s == StatusOpen || s == StatusPartial
}

type transition struct {
	from Status
	to   Status
}

// legal transitions; same-state transitions are always allowed (idempotence).
var transitions = map[transition]bool{
	{StatusPending, StatusOpen}:     true,
	{StatusPending, StatusRejected}: true,

	{StatusOpen, StatusPartial}:    true,
	{StatusOpen, StatusFilled}:     true,
	{StatusOpen, StatusCancelling}: true,
	{StatusOpen, StatusCancelled}:  true,
	{StatusOpen, StatusRejected}:   true,

	{StatusPartial, StatusPartial}:    true, // 多次部分成交
	{StatusPartial, StatusFilled}:     true,
	{StatusPartial, StatusCancelling}: true,
	{StatusPartial, StatusCancelled}:  true,

	{StatusCancelling, StatusCancelled}: true,
	{StatusCancelling, StatusFilled}:    true, // 撤单路上全部成交
	{StatusCancelling, StatusPartial}:   true,
}

// ValidateTransition 验证状态转换是否合法
func ValidateTransition(from, to Status) error {
	if from == to {
		return nil
	}
	if !transitions[transition{from, to}] {
		return fmt.Errorf("illegal state transition: %s -> %s", from, to)
	}
	return nil
}
