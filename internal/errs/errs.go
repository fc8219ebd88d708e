package errs

import (
	"errors"
	"fmt"
)

// Kind 错误分类，用于决定重试与展示策略
// Kind classifies an error for retry and presentation decisions
type Kind int

const (
	KindUnknown Kind = iota
	KindPermissionDenied
	KindDeviceNotFound
	KindDeviceBusy
	KindInvalidState
	KindPreconditionFailed
	KindTransientService
	KindRateLimited
	KindQuotaExhausted
	KindMalformedResponse
	KindNetwork
)

var kindNames = map[Kind]string{
	KindUnknown:            "unknown",
	KindPermissionDenied:   "permission denied",
	KindDeviceNotFound:     "device not found",
	KindDeviceBusy:         "device busy",
	KindInvalidState:       "invalid state",
	KindPreconditionFailed: "precondition failed",
	KindTransientService:   "transient service error",
	KindRateLimited:        "rate limited",
	KindQuotaExhausted:     "quota exhausted",
	KindMalformedResponse:  "malformed response",
	KindNetwork:            "network error",
}

func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// ParseKind maps a Kind name back to its value; unknown names give KindUnknown.
func ParseKind(name string) Kind {
	for k, s := range kindNames {
		if s == name {
			return k
		}
	}
	return KindUnknown
}

// Sentinels for errors.Is comparisons; only the Kind is compared.
var (
	ErrPermissionDenied   = &Error{Kind: KindPermissionDenied}
	ErrDeviceNotFound     = &Error{Kind: KindDeviceNotFound}
	ErrDeviceBusy         = &Error{Kind: KindDeviceBusy}
	ErrInvalidState       = &Error{Kind: KindInvalidState}
	ErrPreconditionFailed = &Error{Kind: KindPreconditionFailed}
	ErrTransientService   = &Error{Kind: KindTransientService}
	ErrRateLimited        = &Error{Kind: KindRateLimited}
	ErrQuotaExhausted     = &Error{Kind: KindQuotaExhausted}
	ErrMalformedResponse  = &Error{Kind: KindMalformedResponse}
	ErrNetwork            = &Error{Kind: KindNetwork}
)

// Error 带分类的错误
// Error is a classified error carrying the failing operation
type Error struct {
	Kind Kind
	Op   string
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	msg := e.Msg
	if msg == "" {
		msg = e.Kind.String()
	}
	if e.Op != "" {
		msg = e.Op + ": " + msg
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches any *Error with the same Kind.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Kind == e.Kind
}

// New 创建分类错误 / Creates a classified error
func New(kind Kind, op, msg string) *Error {
	return &Error{Kind: kind, Op: op, Msg: msg}
}

// Wrap 给底层错误附加分类；err 为 nil 时返回 nil
// Wrap attaches a classification to err; returns nil when err is nil
func Wrap(kind Kind, op string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Op: op, Err: err}
}

// KindOf returns the Kind of the outermost *Error in the chain, or KindUnknown.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// Is reports whether err carries the given kind.
func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

// Retryable 是否可按退避策略重试（瞬时错误、限流、网络错误）
// Retryable reports whether the failure may be retried with backoff
func Retryable(err error) bool {
	switch KindOf(err) {
	case KindTransientService, KindRateLimited, KindNetwork:
		return true
	default:
		return false
	}
}
