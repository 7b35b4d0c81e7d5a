package core

import "errors"

// DomainError 是领域层的统一错误类型。
//
// 设计原则：
//   - 所有领域层错误都使用此类型
//   - 提供错误代码（Code）和消息（Message）
//   - 支持错误检查函数（IsXXX）与 errors.Is，兼容 fmt.Errorf("...: %w") 包装后的错误
//
// 使用场景：
//   - Store 错误：NOT_FOUND, NOT_SUPPORTED
//   - Candidate 构造错误：INVALID_INPUT
//   - Topic 截断错误：NO_TOPICS
type DomainError struct {
	Code    string // 错误代码（如 "NOT_FOUND", "NOT_SUPPORTED"）
	Message string // 错误消息
	Module  string // 模块名称（如 "store", "topic", "recall"）
}

func (e *DomainError) Error() string {
	return e.Message
}

// Is 按 Module + Code 匹配，便于 errors.Is 与哨兵错误比较。
func (e *DomainError) Is(target error) bool {
	t, ok := target.(*DomainError)
	if !ok {
		return false
	}
	return e.Module == t.Module && e.Code == t.Code
}

// GetDomainError 获取错误链中的 DomainError，如果没有则返回 nil
func GetDomainError(err error) *DomainError {
	if err == nil {
		return nil
	}
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr
	}
	return nil
}

// NewDomainError 创建新的领域错误
func NewDomainError(module, code, message string) *DomainError {
	return &DomainError{
		Module:  module,
		Code:    code,
		Message: message,
	}
}

// 错误代码常量
const (
	ErrorCodeNotFound      = "NOT_FOUND"      // 资源不存在
	ErrorCodeNotSupported  = "NOT_SUPPORTED"  // 操作不支持（如 Store 不认识的谓词）
	ErrorCodeUnavailable   = "UNAVAILABLE"    // 协作方不可用
	ErrorCodeInvalidInput  = "INVALID_INPUT"  // 输入无效
	ErrorCodeInternalError = "INTERNAL_ERROR" // 内部错误
	ErrorCodeNoTopics      = "NO_TOPICS"      // 截断后没有可评估的话题
)

// 模块名称常量
const (
	ModuleStore    = "store"    // 存储模块
	ModuleInterest = "interest" // 兴趣画像模块
	ModuleTopic    = "topic"    // 话题选择模块
	ModuleRecall   = "recall"   // 召回模块
	ModuleFeed     = "feed"     // Feed 编排
)

func hasCode(err error, code string) bool {
	if domainErr := GetDomainError(err); domainErr != nil {
		return domainErr.Code == code
	}
	return false
}

// IsUnavailable 检查错误是否为 UNAVAILABLE
func IsUnavailable(err error) bool {
	return hasCode(err, ErrorCodeUnavailable)
}

// IsInvalidInput 检查错误是否为 INVALID_INPUT
func IsInvalidInput(err error) bool {
	return hasCode(err, ErrorCodeInvalidInput)
}

// IsNoTopics 检查错误是否为 NO_TOPICS
func IsNoTopics(err error) bool {
	return hasCode(err, ErrorCodeNoTopics)
}
