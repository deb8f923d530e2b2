package array

import (
	"log"
	"os"
)

// Context carries the cross-cutting state every long-running array
// operation needs: a *log.Logger passed explicitly into Create/Open/
// Consolidate rather than kept as a package-level global, so concurrent
// callers working against different arrays never share log state.
type Context struct {
	Logger *log.Logger
}

// DefaultContext logs to stderr with date/time.
func DefaultContext() *Context {
	return &Context{Logger: log.New(os.Stderr, "", log.Ldate|log.Ltime)}
}

func (c *Context) logger() *log.Logger {
	if c == nil || c.Logger == nil {
		return log.New(os.Stderr, "", log.Ldate|log.Ltime)
	}
	return c.Logger
}
