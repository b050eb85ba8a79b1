package observability

import (
	"fmt"
	"runtime/debug"
)

// RecoverPanic logs a recovered panic with its stack. Call it deferred in
// background goroutines such as cron jobs; the panic is not re-raised.
func RecoverPanic(logger *Logger, where string) {
	if r := recover(); r != nil {
		logger.WithFields(map[string]interface{}{
			"panic":   fmt.Sprint(r),
			"stack":   string(debug.Stack()),
			"context": where,
		}).Error("PANIC recovered")
	}
}

// SafeGo runs fn in a goroutine that logs instead of crashing on panic.
func SafeGo(logger *Logger, where string, fn func()) {
	go func() {
		defer RecoverPanic(logger, where)
		fn()
	}()
}

// MustRecover converts a recovered value into an error, or nil.
//
//	defer func() { err = observability.MustRecover(recover()) }()
func MustRecover(r interface{}) error {
	if r != nil {
		return fmt.Errorf("panic: %v", r)
	}
	return nil
}
