package types

import (
	"errors"
	"fmt"
)

// ============================================================================
//                              哨兵错误
// ============================================================================

var (
	// ErrValidation 输入校验失败（规划 / 合成 / 合并入口）
	ErrValidation = errors.New("validation failed")

	// ErrCapacity 请求规模超出参考数据库存
	ErrCapacity = errors.New("reference inventory exhausted")

	// ErrShardFull 分片内找不到可用槽位
	ErrShardFull = errors.New("shard full")

	// ErrConvergence 迭代算法达到迭代上限
	ErrConvergence = errors.New("iteration budget exhausted")

	// ErrTransport 帧编解码失败
	ErrTransport = errors.New("transport frame error")

	// ErrReconnectExhausted 重连次数耗尽，传输进入终止状态
	ErrReconnectExhausted = errors.New("reconnect attempts exhausted")
)

// ============================================================================
//                              类型化错误
// ============================================================================

// ValidationError 输入校验错误
//
// 在任何计算开始前返回。
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed: %s: %s", e.Field, e.Reason)
}

// Unwrap 支持 errors.Is(err, ErrValidation)
func (e *ValidationError) Unwrap() error { return ErrValidation }

// NewValidationError 创建校验错误
func NewValidationError(field, format string, args ...any) *ValidationError {
	return &ValidationError{Field: field, Reason: fmt.Sprintf(format, args...)}
}

// CapacityError 容量不足
//
// 合成过程会吸收此错误（有放回采样），并记录到 MeshCharacteristics。
type CapacityError struct {
	Region    string
	Requested int
	Available int
}

func (e *CapacityError) Error() string {
	return fmt.Sprintf("capacity: region %s requested %d distinct locations, %d available",
		e.Region, e.Requested, e.Available)
}

// Unwrap 支持 errors.Is(err, ErrCapacity)
func (e *CapacityError) Unwrap() error { return ErrCapacity }

// ShardFullError 分片已满
//
// 写入失败并返回调用方，记录不会被静默淘汰。
type ShardFullError struct {
	Shard int
	ID    string
}

func (e *ShardFullError) Error() string {
	return fmt.Sprintf("shard %d full: cannot place session %q", e.Shard, e.ID)
}

// Unwrap 支持 errors.Is(err, ErrShardFull)
func (e *ShardFullError) Unwrap() error { return ErrShardFull }

// ConvergenceWarning 迭代未收敛
//
// 不作为调用失败返回，而是记录在结果的 Warnings 中。
type ConvergenceWarning struct {
	Phase      string
	Iterations int
	Residual   float64
}

func (e *ConvergenceWarning) Error() string {
	return fmt.Sprintf("%s did not converge after %d iterations (residual %.3g)",
		e.Phase, e.Iterations, e.Residual)
}

// Unwrap 支持 errors.Is(err, ErrConvergence)
func (e *ConvergenceWarning) Unwrap() error { return ErrConvergence }

// TransportError 帧级别错误
//
// 出错的帧被丢弃并记录日志，通道保持打开。
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	if e.Err == nil {
		return "transport: " + e.Op
	}
	return fmt.Sprintf("transport: %s: %v", e.Op, e.Err)
}

// Is 支持 errors.Is(err, ErrTransport)
func (e *TransportError) Is(target error) bool { return target == ErrTransport }

// Unwrap 返回底层错误
func (e *TransportError) Unwrap() error { return e.Err }

// NewTransportError 创建帧错误
func NewTransportError(op string, err error) *TransportError {
	return &TransportError{Op: op, Err: err}
}
