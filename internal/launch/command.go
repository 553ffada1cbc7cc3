package launch

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"

	"github.com/wagiedev/procbridge/internal/config"
	"github.com/wagiedev/procbridge/internal/errors"
)

// ExecutableDir returns the directory holding the running executable,
// with symlinks resolved.
func ExecutableDir() (string, error) {
	exe, err := os.Executable()
	if err != nil {
		return "", fmt.Errorf("locate executable: %w", err)
	}

	exe, err = filepath.EvalSymlinks(exe)
	if err != nil {
		return "", fmt.Errorf("resolve executable: %w", err)
	}

	return filepath.Dir(exe), nil
}

// Resolve returns the absolute executable path for spec.
//
// A relative Path is joined to BaseDir, or the working directory when
// BaseDir is empty. The file is not checked for existence; that is left to
// the OS when the process starts.
func Resolve(spec config.LaunchSpec) (string, error) {
	if strings.TrimSpace(spec.Path) == "" {
		return "", fmt.Errorf("%w: empty executable path", errors.ErrInvalidLaunchSpec)
	}

	path := spec.Path
	if !filepath.IsAbs(path) && spec.BaseDir != "" {
		path = filepath.Join(spec.BaseDir, path)
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("resolve %s: %w", spec.Path, err)
	}

	return abs, nil
}

// Command builds the command for spec without starting it.
//
// Stdio is left unset; the caller wires pipes before Start.
func Command(spec config.LaunchSpec) (*exec.Cmd, error) {
	path, err := Resolve(spec)
	if err != nil {
		return nil, err
	}

	args := make([]string, 0, len(spec.Args)+1)
	args = append(args, path)
	args = append(args, spec.Args...)

	// Path is set directly so exec never searches PATH.
	//nolint:gosec // G204: launching a caller-provided executable is the purpose of this package
	cmd := &exec.Cmd{
		Path:        path,
		Args:        args,
		Dir:         spec.Dir,
		Env:         BuildEnvironment(spec.Env),
		SysProcAttr: sysProcAttr(spec),
	}

	return cmd, nil
}

// BuildEnvironment returns the parent's environment with extra appended in
// sorted key order. Later entries win, so extra overrides inherited values.
func BuildEnvironment(extra map[string]string) []string {
	env := os.Environ()

	keys := make([]string, 0, len(extra))
	for key := range extra {
		keys = append(keys, key)
	}

	sort.Strings(keys)

	for _, key := range keys {
		env = append(env, fmt.Sprintf("%s=%s", key, extra[key]))
	}

	return env
}
