package storage

import "fmt"

// Result is the envelope every storage operation returns. Adapters catch all
// engine-level errors at their boundary and report them here; no storage
// method ever returns a raw error to callers.
type Result[T any] struct {
	Success bool   `json:"success"`
	Data    T      `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
}

// Status is the envelope for operations that carry no data.
type Status struct {
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}

func ok[T any](data T) Result[T] {
	return Result[T]{Success: true, Data: data}
}

func fail[T any](format string, args ...any) Result[T] {
	return Result[T]{Error: fmt.Sprintf(format, args...)}
}

// failWith reports a failure while still exposing partial data, used by bulk
// operations that commit the items that did succeed.
func failWith[T any](data T, format string, args ...any) Result[T] {
	return Result[T]{Data: data, Error: fmt.Sprintf(format, args...)}
}

func done() Status {
	return Status{Success: true}
}

func failStatus(format string, args ...any) Status {
	return Status{Error: fmt.Sprintf(format, args...)}
}
