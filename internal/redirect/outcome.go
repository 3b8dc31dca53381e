package redirect

import (
	"context"
	"sync"
)

// Outcome is the single-fire result of a pending authorization.
// It can only be resolved once; subsequent calls to Resolve are no-ops.
type Outcome struct {
	once sync.Once
	done chan struct{}
	ok   bool
}

// NewOutcome returns an unresolved Outcome.
func NewOutcome() *Outcome {
	return &Outcome{
		done: make(chan struct{}),
	}
}

// Resolve sets the result of the authorization.
// Returns true if this call resolved the outcome, false if it was
// already resolved, in which case the existing result is unchanged.
func (o *Outcome) Resolve(ok bool) (resolved bool) {
	o.once.Do(func() {
		o.ok = ok
		close(o.done)
		resolved = true
	})
	return resolved
}

// Done returns a channel that is closed once the outcome is resolved.
func (o *Outcome) Done() <-chan struct{} {
	return o.done
}

// Wait blocks until the outcome is resolved or ctx is done.
// If ctx ends first, the outcome is resolved as failed and ctx.Err()
// is returned.
func (o *Outcome) Wait(ctx context.Context) (bool, error) {
	select {
	case <-o.done:
		return o.ok, nil
	case <-ctx.Done():
		o.Resolve(false)
		// The outcome may have been resolved concurrently
		<-o.done
		if o.ok {
			return true, nil
		}
		return false, ctx.Err()
	}
}
