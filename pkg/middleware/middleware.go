// Package middleware provides the HTTP middleware stack of an API module:
// panic recovery, request logging, and CORS.
package middleware

import "net/http"

// Stack is an ordered list of middleware. The first added wraps outermost.
type Stack struct {
	stack []func(http.Handler) http.Handler
}

// New creates an empty Stack.
func New() *Stack {
	return &Stack{}
}

// Use appends mw to the stack.
func (s *Stack) Use(mw func(http.Handler) http.Handler) {
	s.stack = append(s.stack, mw)
}

// Apply wraps handler with every middleware of the stack.
func (s *Stack) Apply(handler http.Handler) http.Handler {
	for i := len(s.stack) - 1; i >= 0; i-- {
		handler = s.stack[i](handler)
	}
	return handler
}

// statusRecorder remembers the status code written through it.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (w *statusRecorder) WriteHeader(code int) {
	if w.status == 0 {
		w.status = code
	}
	w.ResponseWriter.WriteHeader(code)
}

func (w *statusRecorder) Write(b []byte) (int, error) {
	if w.status == 0 {
		w.status = http.StatusOK
	}
	return w.ResponseWriter.Write(b)
}

func (w *statusRecorder) Unwrap() http.ResponseWriter {
	return w.ResponseWriter
}

func (w *statusRecorder) code() int {
	if w.status == 0 {
		return http.StatusOK
	}
	return w.status
}
