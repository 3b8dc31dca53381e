// Package errutil contains helpers to deal with errors.
package errutil

import (
	"errors"
	"fmt"
)

// RunAndSetError runs fn and, if it fails, records its error in err.
// It's meant to be deferred on cleanup functions such as Body.Close:
//
//	defer errutil.RunAndSetError(resp.Body.Close, &err, "close response body")
//
// If err already holds an error, both errors are joined.
func RunAndSetError(fn func() error, err *error, msg string) {
	e := fn()
	if e == nil {
		return
	}
	e = fmt.Errorf("%s: %w", msg, e)
	if *err == nil {
		*err = e
		return
	}
	*err = errors.Join(*err, e)
}
