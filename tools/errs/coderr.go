package errs

import (
	stderrors "errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

type CodeErrorI interface {
	ECode() int
	EMsg() string
	DDetail() string
	WithDetail(detail string) CodeError
	error
}

func NewCodeError(code int, msg string) CodeError {
	return CodeError{
		Code: code,
		Msg:  msg,
	}
}

type CodeError struct {
	Code   int    `json:"code"`
	Msg    string `json:"msg"`
	Detail string `json:"detail,omitempty"`
}

func (e CodeError) ECode() int      { return e.Code }
func (e CodeError) EMsg() string    { return e.Msg }
func (e CodeError) DDetail() string { return e.Detail }

func (e CodeError) WithDetail(detail string) CodeError {
	var d string
	if e.Detail == "" {
		d = detail
	} else {
		d = e.Detail + ", " + detail
	}
	return CodeError{
		Code:   e.Code,
		Msg:    e.Msg,
		Detail: d,
	}
}

// Wrap 附带调用栈（栈由 pkg/errors 提供）
func (e CodeError) Wrap() error {
	return errors.WithStack(e)
}

// WrapMsg 追加 detail 并附带调用栈，kv 形如 "key", value, ...
func (e CodeError) WrapMsg(msg string, kv ...any) error {
	ret := e
	if msg != "" || len(kv) > 0 {
		detail := toString(msg, kv)
		if ret.Detail == "" {
			ret.Detail = detail
		} else {
			ret.Detail += ", " + detail
		}
	}
	return errors.WithStack(ret)
}

func (e CodeError) Is(err error) bool {
	var codeErr CodeError
	if !stderrors.As(err, &codeErr) {
		return false
	}
	return e.Code == codeErr.Code
}

const initialCapacity = 3

func (e CodeError) Error() string {
	v := make([]string, 0, initialCapacity)
	v = append(v, strconv.Itoa(e.Code), e.Msg)

	if e.Detail != "" {
		v = append(v, e.Detail)
	}

	return strings.Join(v, " ")
}

func toString(msg string, kv []any) string {
	var sb strings.Builder
	sb.WriteString(msg)
	for i := 0; i < len(kv); i += 2 {
		if sb.Len() > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString(fmt.Sprint(kv[i]))
		sb.WriteString("=")
		if i+1 < len(kv) {
			sb.WriteString(fmt.Sprint(kv[i+1]))
		}
	}
	return sb.String()
}

// CodeOf 提取错误里的业务码；非 CodeError 一律按内部错误处理
func CodeOf(err error) int {
	var codeErr CodeError
	if stderrors.As(err, &codeErr) {
		return codeErr.Code
	}
	return ServerInternalError
}

// AsCodeError 还原 CodeError；非 CodeError 包装为内部错误
func AsCodeError(err error) CodeError {
	var codeErr CodeError
	if stderrors.As(err, &codeErr) {
		return codeErr
	}
	return ErrInternal.WithDetail(err.Error())
}

// New 构造一个内部错误（无业务码场景）
func New(msg string) error {
	return errors.WithStack(CodeError{Code: ServerInternalError, Msg: msg})
}

// Wrap 给任意错误附加调用栈
func Wrap(err error) error {
	return errors.WithStack(err)
}

// WrapMsg 把任意错误包装为内部错误并追加 kv detail
func WrapMsg(err error, msg string, kv ...any) error {
	if err == nil {
		return nil
	}
	return ErrInternal.WrapMsg(toString(msg, kv) + ": " + err.Error())
}

// WrapExternal 包装来自外部依赖（存储/网络等）的原始错误
func WrapExternal(err error, msg string, kv ...any) error {
	if err == nil {
		return nil
	}
	return ErrStorage.WrapMsg(toString(msg, kv) + ": " + err.Error())
}
