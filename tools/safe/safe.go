package safe

import (
	"fmt"
	"reflect"

	"MuseShare/logger"
	"MuseShare/tools/errs"
)

// MustNotNil panics if the given value is nil.
// Useful for enforcing required fields during struct initialization.
func MustNotNil(v any, name string) {
	if v == nil || (reflect.ValueOf(v).Kind() == reflect.Ptr && reflect.ValueOf(v).IsNil()) {
		panic(fmt.Sprintf("%s must not be nil", name))
	}
}

// Go runs f in a goroutine with panic recovery.
func Go(f func()) {
	go func() {
		defer func() {
			if r := recover(); r != nil {
				logger.Errorf("[SafeGo] %v", errs.ErrPanic(r))
			}
		}()
		f()
	}()
}
