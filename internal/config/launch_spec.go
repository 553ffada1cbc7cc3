// Package config provides configuration types for the process bridge.
package config

import (
	"maps"
	"slices"
)

// LaunchSpec describes the executable a bridge starts.
//
// A LaunchSpec is owned by the caller. The bridge copies the slices and maps
// it keeps, so a spec may be reused after Activate returns.
type LaunchSpec struct {
	// Path is the executable to run. A relative Path is resolved against
	// BaseDir, or the current working directory when BaseDir is empty.
	// PATH is never searched.
	Path string

	// Args are the command-line arguments, not including the program name.
	Args []string

	// BaseDir is the caller's installation directory.
	BaseDir string

	// Dir is the working directory of the child. Empty inherits the parent's.
	Dir string

	// Env provides additional environment variables for the child.
	// They are merged over the parent's environment.
	Env map[string]string

	// CreateNoWindow suppresses the console window of the child.
	// Only honoured on windows.
	CreateNoWindow bool
}

// Clone returns a deep copy of the spec.
func (s LaunchSpec) Clone() LaunchSpec {
	c := s
	c.Args = slices.Clone(s.Args)
	c.Env = maps.Clone(s.Env)

	return c
}
