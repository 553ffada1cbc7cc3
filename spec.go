package procbridge

import (
	"github.com/wagiedev/procbridge/internal/config"
	"github.com/wagiedev/procbridge/internal/launch"
)

// LoadLaunchSpec reads a launch spec from a .toml, .yaml, .yml or .json file.
//
// Example file (server.toml):
//
//	path = "bin/server"
//	args = ["--stdio"]
//	create_no_window = true
//
//	[env]
//	SERVER_LOG = "${HOME}/server.log"
//
// A relative path resolves against base_dir, or the directory holding the
// file. Failures are returned as *SpecFileError.
func LoadLaunchSpec(file string) (LaunchSpec, error) {
	return config.LoadLaunchSpec(file)
}

// ParseLaunchSpec decodes a launch spec document. ext selects the format the
// same way the file extension does for LoadLaunchSpec.
func ParseLaunchSpec(data []byte, ext string) (LaunchSpec, error) {
	return config.ParseLaunchSpec(data, ext)
}

// ExecutableDir returns the directory containing the running program, with
// symlinks resolved. Use it as LaunchSpec.BaseDir to start a binary shipped
// next to the caller.
func ExecutableDir() (string, error) {
	return launch.ExecutableDir()
}

// ResolvePath returns the absolute path Activate would execute for spec.
// PATH is never searched.
func ResolvePath(spec LaunchSpec) (string, error) {
	return launch.Resolve(spec)
}
