package global

import "PPChat/tools/errs"

// Msg 统一响应包：{code, msg, data}
type Msg struct {
	Code int    `json:"code"`
	Msg  string `json:"msg"`
	Data any    `json:"data,omitempty"`
}

func Success(data any) *Msg {
	return &Msg{
		Code: 200,
		Msg:  "",
		Data: data,
	}
}

// Fail renders err without leaking internal details.
func Fail(err error) *Msg {
	return &Msg{
		Code: errs.HTTPStatus(err),
		Msg:  errs.PublicMessage(err),
	}
}
