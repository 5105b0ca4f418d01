package artifact

import "fmt"

// Handler executes one command and returns it updated with the outcome.
type Handler func(Command) (Command, error)

// Middleware wraps a Handler, typically to validate, log, or short-circuit
// a command before (or after) it reaches the next link in the chain.
type Middleware func(next Handler) Handler

// MiddlewareError wraps a failure raised by a middleware link, distinct
// from an error returned by the terminal handler itself.
type MiddlewareError struct {
	Stage string
	Err   error
}

func (e *MiddlewareError) Error() string {
	return fmt.Sprintf("artifact middleware %s: %v", e.Stage, e.Err)
}
func (e *MiddlewareError) Unwrap() error { return e.Err }

// chain composes middlewares around a terminal handler, in the order given:
// the first middleware is outermost and runs first on the way in.
func chain(terminal Handler, mws ...Middleware) Handler {
	h := terminal
	for i := len(mws) - 1; i >= 0; i-- {
		h = mws[i](h)
	}
	return h
}

// validateFilename rejects path traversal and empty filenames before any
// write reaches disk.
func validateFilename(next Handler) Handler {
	return func(cmd Command) (Command, error) {
		if cmd.Filename == "" {
			err := fmt.Errorf("artifact filename is required")
			return cmd.withStatus(StatusFailed, err), &MiddlewareError{Stage: "validate", Err: err}
		}
		for _, r := range cmd.Filename {
			if r == 0 {
				err := fmt.Errorf("artifact filename %q contains a NUL byte", cmd.Filename)
				return cmd.withStatus(StatusFailed, err), &MiddlewareError{Stage: "validate", Err: err}
			}
		}
		return next(cmd)
	}
}

// markInProgress stamps the command before the terminal handler runs, so a
// crash mid-write leaves a command log entry distinguishable from one that
// never started.
func markInProgress(next Handler) Handler {
	return func(cmd Command) (Command, error) {
		cmd.Status = StatusInProgress
		return next(cmd)
	}
}
