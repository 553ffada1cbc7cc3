// Package errors defines error types for the process bridge.
//
// This package provides structured error types for the failure kinds a bridge
// can report: a process that could not be launched, a process that exited
// while its channel was still in use, and a shutdown that had to escalate to a
// forceful kill. All error types support error unwrapping and can be checked
// using errors.Is, errors.As, and errors.AsType.
package errors
