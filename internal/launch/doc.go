// Package launch turns a LaunchSpec into a ready-to-start command and owns
// the per-platform parts of process control.
//
// # Path Resolution
//
// Executables are never looked up on PATH. A relative path is joined to the
// spec's BaseDir, the directory the caller was installed in:
//
//	dir, err := launch.ExecutableDir()
//	cmd, err := launch.Command(config.LaunchSpec{
//	    Path:    "server",
//	    BaseDir: dir,
//	})
//
// # Process Control
//
// On unix the child is placed in its own process group so that Terminate
// (SIGTERM) and Kill (SIGKILL) reach every process it spawned. On windows
// the child gets a new process group, Terminate sends CTRL_BREAK to it and
// Kill uses TerminateProcess.
package launch
