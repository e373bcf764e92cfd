package errs

import (
	"fmt"

	pkgerrs "github.com/pkg/errors"
)

// ErrPanic turns a recovered value into an internal CodeError with a stack.
func ErrPanic(r any) error {
	if r == nil {
		return nil
	}
	if err, ok := r.(error); ok {
		return ErrInternalServer.WrapMsg("panic", "cause", err.Error())
	}
	return pkgerrs.WithStack(&CodeError{
		Code:   ServerInternalError,
		Msg:    "panic",
		Detail: fmt.Sprint(r),
	})
}
