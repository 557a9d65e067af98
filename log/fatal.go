package log

import (
	"fmt"

	"go.uber.org/zap/zapcore"
)

// Errors that stop the node. The code is printed so operators can grep for it.
var (
	ErrMalformedConfig = newFatalErrorWithReason("ERR_MALFORMED_CONFIG", "config file is malformed")
	ErrBadFlags        = newFatalErrorWithReason("ERR_BAD_FLAGS", "bad CLI flags")
	ErrEnsureDataDir   = newFatalErrorWithArgs("ERR_ENSURE_DATA_DIR", "could not open/create data dir %v: %v")
	ErrLockDataDir     = newFatalErrorWithReason("ERR_LOCK_DATA_DIR", "data dir is used by another instance")
	ErrReconcile       = newFatalErrorWithReason("ERR_RECONCILE", "store reconciliation failed")
	ErrLiveStoreWrite  = newFatalErrorWithReason("ERR_LIVE_STORE_WRITE", "live store is not writable")
)

type FatalError struct {
	Code   string
	Text   string
	Args   []any
	Reason error
}

func newFatalErrorWithArgs(code, text string) func(args ...any) *FatalError {
	return func(args ...any) *FatalError {
		return &FatalError{
			Code: code,
			Text: text,
			Args: args,
		}
	}
}

func newFatalErrorWithReason(code, text string) func(reason error) *FatalError {
	return func(reason error) *FatalError {
		return &FatalError{
			Code:   code,
			Text:   text,
			Reason: reason,
		}
	}
}

func (fe *FatalError) Error() string {
	if fe.Reason != nil {
		return fmt.Sprintf("%v: %v", fe.Text, fe.Reason)
	}
	if len(fe.Args) != 0 {
		return fmt.Sprintf(fe.Text, fe.Args...)
	}
	return fe.Text
}

func (fe *FatalError) Unwrap() error {
	return fe.Reason
}

// MarshalLogObject implements zapcore.ObjectMarshaler.
func (fe *FatalError) MarshalLogObject(encoder zapcore.ObjectEncoder) error {
	encoder.AddString("code", fe.Code)
	encoder.AddString("error", fe.Error())
	return nil
}
