package zonalbatch

import (
	"fmt"
	"github.com/pkg/errors"
)

//BatchError error raised by a calculation stage, Code tells which stage failed
type BatchError interface {
	Code() string
	Message() string
	Error() string
	StackTrace() errors.StackTrace
}

type batchErr struct {
	code  string
	msg   string
	err   error
	stack *stack
}

type stack struct {
	err error
}

func (err *batchErr) Code() string {
	return err.code
}

func (err *batchErr) Message() string {
	return err.msg
}

func (err *batchErr) Error() string {
	if err.err != nil {
		return fmt.Sprintf("batch err, code:%v, message:%v, cause:%v", err.code, err.msg, err.err)
	}
	return fmt.Sprintf("batch err, code:%v, message:%v", err.code, err.msg)
}

func (err *batchErr) Cause() error {
	return err.err
}

func (err *batchErr) Unwrap() error {
	return err.err
}

func (err *batchErr) StackTrace() errors.StackTrace {
	if st, ok := err.stack.err.(interface{ StackTrace() errors.StackTrace }); ok {
		return st.StackTrace()
	}
	return nil
}

func (err *batchErr) Format(s fmt.State, verb rune) {
	switch verb {
	case 'v':
		if s.Flag('+') {
			fmt.Fprintf(s, "%s", err.Error())
			fmt.Fprintf(s, "%+v", err.StackTrace())
			return
		}
		fallthrough
	case 's':
		fmt.Fprintf(s, "%s", err.Error())
	case 'q':
		fmt.Fprintf(s, "%q", err.Error())
	}
}

//NewBatchError create a BatchError, msg and args are formatted like fmt.Sprintf. When the last
//arg is an error it becomes the cause, when it is already a BatchError with the same code it is returned as is.
func NewBatchError(code string, msg string, args ...interface{}) BatchError {
	var cause error
	if len(args) > 0 {
		if e, ok := args[len(args)-1].(error); ok {
			if be, ok := e.(BatchError); ok && be.Code() == code && len(args) == 1 && msg == "" {
				return be
			}
			cause = e
			if countVerbs(msg) < len(args) {
				args = args[:len(args)-1]
			}
		}
	}
	if len(args) > 0 {
		msg = fmt.Sprintf(msg, args...)
	}
	return &batchErr{code: code, msg: msg, err: cause, stack: &stack{err: errors.New(msg)}}
}

func countVerbs(format string) int {
	n := 0
	for i := 0; i < len(format); i++ {
		if format[i] != '%' {
			continue
		}
		if i+1 < len(format) && format[i+1] == '%' {
			i++
			continue
		}
		n++
	}
	return n
}

const (
	ErrCodeValidation  = "validation"
	ErrCodeCompute     = "compute"
	ErrCodePersist     = "persist"
	ErrCodeConcurrency = "concurrency"
	ErrCodeDbFail      = "db_fail"
	ErrCodeGeneral     = "general"
	ErrCodeCanceled    = "canceled"
)

var (
	ConcurrentError BatchError = &batchErr{code: ErrCodeConcurrency, msg: "a calculation is already running", stack: &stack{}}
	CanceledError   BatchError = &batchErr{code: ErrCodeCanceled, msg: "calculation canceled", stack: &stack{}}
)
