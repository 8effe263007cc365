package global

import "MGProject/tools/errs"

type Msg struct {
	Code int    `json:"code"`
	Msg  string `json:"msg"`
	Data any    `json:"data,omitempty"`
}

func Sucess(data any) *Msg {
	return &Msg{
		Code: 200,
		Msg:  "",
		Data: data,
	}
}

// Fail 把 CodeError 映射成统一返回体
func Fail(err error) *Msg {
	ce := errs.AsCodeError(err)
	return &Msg{
		Code: ce.Code,
		Msg:  ce.Msg,
		Data: nil,
	}
}
