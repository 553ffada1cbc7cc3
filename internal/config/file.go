package config

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/drone/envsubst"
	"github.com/google/jsonschema-go/jsonschema"
	"gopkg.in/yaml.v3"

	"github.com/wagiedev/procbridge/internal/errors"
)

// specFile is the on-disk form of a LaunchSpec.
type specFile struct {
	Path           string            `json:"path" jsonschema:"executable to run, relative paths resolve against base_dir or the file's directory"`
	Args           []string          `json:"args,omitempty" jsonschema:"command-line arguments"`
	BaseDir        string            `json:"base_dir,omitempty" jsonschema:"installation directory used to resolve path"`
	Dir            string            `json:"dir,omitempty" jsonschema:"working directory of the child"`
	Env            map[string]string `json:"env,omitempty" jsonschema:"extra environment variables"`
	CreateNoWindow bool              `json:"create_no_window,omitempty" jsonschema:"suppress the console window on windows"`
}

// specSchema is built once from specFile.
var specSchema = mustSpecSchema()

func mustSpecSchema() *jsonschema.Resolved {
	schema, err := jsonschema.For[specFile](nil)
	if err != nil {
		panic(fmt.Sprintf("infer launch spec schema: %v", err))
	}

	minPath := 1
	schema.Required = []string{"path"}
	schema.AdditionalProperties = &jsonschema.Schema{Not: &jsonschema.Schema{}}

	if p, ok := schema.Properties["path"]; ok {
		p.MinLength = &minPath
	}

	resolved, err := schema.Resolve(nil)
	if err != nil {
		panic(fmt.Sprintf("resolve launch spec schema: %v", err))
	}

	return resolved
}

// LoadLaunchSpec reads a launch spec from a TOML, YAML or JSON file.
//
// The format is chosen by file extension. The document is validated before
// ${VAR} references in path, args, dir, base_dir and env values are expanded
// from the environment. A relative path resolves against base_dir, or the
// directory holding the file when base_dir is not set.
//
// All failures are returned as *errors.SpecFileError.
func LoadLaunchSpec(file string) (LaunchSpec, error) {
	data, err := os.ReadFile(file)
	if err != nil {
		return LaunchSpec{}, &errors.SpecFileError{File: file, Err: err}
	}

	spec, err := ParseLaunchSpec(data, filepath.Ext(file))
	if err != nil {
		return LaunchSpec{}, &errors.SpecFileError{File: file, Err: err}
	}

	if spec.BaseDir == "" {
		dir, err := filepath.Abs(filepath.Dir(file))
		if err != nil {
			return LaunchSpec{}, &errors.SpecFileError{File: file, Err: err}
		}

		spec.BaseDir = dir
	}

	return spec, nil
}

// ParseLaunchSpec decodes, validates and expands a launch spec document.
// ext selects the decoder: ".toml", ".yaml", ".yml" or ".json".
func ParseLaunchSpec(data []byte, ext string) (LaunchSpec, error) {
	doc, err := decodeDocument(data, ext)
	if err != nil {
		return LaunchSpec{}, err
	}

	// Round-trip through JSON so every decoder yields the same value shapes.
	normalized, err := json.Marshal(doc)
	if err != nil {
		return LaunchSpec{}, fmt.Errorf("normalize document: %w", err)
	}

	var instance any
	if err := json.Unmarshal(normalized, &instance); err != nil {
		return LaunchSpec{}, fmt.Errorf("normalize document: %w", err)
	}

	if err := specSchema.Validate(instance); err != nil {
		return LaunchSpec{}, fmt.Errorf("%w: %w", errors.ErrInvalidLaunchSpec, err)
	}

	var f specFile

	dec := json.NewDecoder(bytes.NewReader(normalized))
	dec.DisallowUnknownFields()

	if err := dec.Decode(&f); err != nil {
		return LaunchSpec{}, fmt.Errorf("decode launch spec: %w", err)
	}

	return f.expand()
}

func decodeDocument(data []byte, ext string) (map[string]any, error) {
	doc := map[string]any{}

	switch strings.ToLower(ext) {
	case ".toml":
		if err := toml.Unmarshal(data, &doc); err != nil {
			return nil, fmt.Errorf("parse toml: %w", err)
		}
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &doc); err != nil {
			return nil, fmt.Errorf("parse yaml: %w", err)
		}
	case ".json":
		if err := json.Unmarshal(data, &doc); err != nil {
			return nil, fmt.Errorf("parse json: %w", err)
		}
	default:
		return nil, fmt.Errorf("unsupported launch spec format %q", ext)
	}

	return doc, nil
}

// expand substitutes environment references and builds the LaunchSpec.
func (f *specFile) expand() (LaunchSpec, error) {
	var err error

	spec := LaunchSpec{CreateNoWindow: f.CreateNoWindow}

	if spec.Path, err = envsubst.EvalEnv(f.Path); err != nil {
		return LaunchSpec{}, fmt.Errorf("expand path: %w", err)
	}

	if spec.BaseDir, err = envsubst.EvalEnv(f.BaseDir); err != nil {
		return LaunchSpec{}, fmt.Errorf("expand base_dir: %w", err)
	}

	if spec.Dir, err = envsubst.EvalEnv(f.Dir); err != nil {
		return LaunchSpec{}, fmt.Errorf("expand dir: %w", err)
	}

	if len(f.Args) > 0 {
		spec.Args = make([]string, len(f.Args))

		for i, arg := range f.Args {
			if spec.Args[i], err = envsubst.EvalEnv(arg); err != nil {
				return LaunchSpec{}, fmt.Errorf("expand args[%d]: %w", i, err)
			}
		}
	}

	if len(f.Env) > 0 {
		spec.Env = make(map[string]string, len(f.Env))

		keys := make([]string, 0, len(f.Env))
		for k := range f.Env {
			keys = append(keys, k)
		}

		sort.Strings(keys)

		for _, k := range keys {
			if spec.Env[k], err = envsubst.EvalEnv(f.Env[k]); err != nil {
				return LaunchSpec{}, fmt.Errorf("expand env %s: %w", k, err)
			}
		}
	}

	if spec.Path == "" {
		return LaunchSpec{}, fmt.Errorf("%w: path expands to an empty string", errors.ErrInvalidLaunchSpec)
	}

	return spec, nil
}
