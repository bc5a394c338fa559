// Package config loads scriptlock run configuration from CUE.
//
// The embedded schema supplies every default, so a run needs no file at all.
// A user file is unified with the closed #Config definition: unknown fields
// and out-of-range values are rejected with the position they came from.
package config

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"time"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueerrors "cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/token"
)

//go:embed schema.cue
var schemaSrc string

// DefaultFile is picked up from the working directory when no file is named.
const DefaultFile = "scriptlock.cue"

// Config is a fully resolved run configuration.
type Config struct {
	Workers        int
	Script         string
	MaxWorkDelay   time.Duration
	MaxLockedDelay time.Duration
	DB             string
	LoadPath       []string
}

// fileConfig mirrors #Config for decoding.
type fileConfig struct {
	Workers        int      `json:"workers"`
	Script         string   `json:"script"`
	MaxWorkDelay   string   `json:"max_work_delay"`
	MaxLockedDelay string   `json:"max_locked_delay"`
	DB             string   `json:"db"`
	LoadPath       []string `json:"load_path"`
}

// Error code constants shared with the CLI.
const (
	ErrCodeGeneric         = "E001" // Generic/unknown error
	ErrCodeLoadFailed      = "E004" // CUE load failed
	ErrCodeNotFound        = "E005" // Path not found
	ErrCodeBuildFailed     = "E006" // CUE build failed
	ErrCodeInvalidConfig   = "E120" // Value rejected by #Config
	ErrCodeInvalidDuration = "E121" // Delay is not a valid duration
)

// LoadError represents an error that occurred while loading configuration.
type LoadError struct {
	Code    string
	Message string
	Pos     token.Pos // CUE position if available
}

func (e *LoadError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s", e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(), e.Code, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Default returns the configuration described by the schema defaults alone.
func Default() (Config, error) {
	return load(nil, "")
}

// Load reads path and unifies it with the schema.
// An empty path loads DefaultFile if it exists, and the defaults otherwise.
func Load(path string) (Config, error) {
	if path == "" {
		if _, err := os.Stat(DefaultFile); err != nil {
			return Default()
		}
		path = DefaultFile
	}

	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return Config{}, &LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("config file not found: %s", path)}
	}
	if err != nil {
		return Config{}, &LoadError{Code: ErrCodeLoadFailed, Message: fmt.Sprintf("reading config: %v", err)}
	}
	return load(data, path)
}

// Parse unifies CUE source with the schema. filename is used in positions.
func Parse(src []byte, filename string) (Config, error) {
	return load(src, filename)
}

// Validate checks a resolved configuration, flag overrides included, against
// the same #Config rules a file is held to.
func (c Config) Validate() error {
	if c.MaxWorkDelay < 0 || c.MaxLockedDelay < 0 {
		return &LoadError{Code: ErrCodeInvalidDuration, Message: "delays must not be negative"}
	}

	ctx := cuecontext.New()
	value, err := configSchema(ctx)
	if err != nil {
		return err
	}

	loadPath := c.LoadPath
	if loadPath == nil {
		loadPath = []string{}
	}
	value = value.Unify(ctx.Encode(fileConfig{
		Workers:        c.Workers,
		Script:         c.Script,
		MaxWorkDelay:   c.MaxWorkDelay.String(),
		MaxLockedDelay: c.MaxLockedDelay.String(),
		DB:             c.DB,
		LoadPath:       loadPath,
	}))
	if err := value.Validate(cue.Concrete(true)); err != nil {
		return newLoadError(ErrCodeInvalidConfig, err)
	}
	return nil
}

// configSchema compiles the embedded schema and returns #Config.
func configSchema(ctx *cue.Context) (cue.Value, error) {
	schema := ctx.CompileString(schemaSrc, cue.Filename("schema.cue"))
	if err := schema.Err(); err != nil {
		return cue.Value{}, &LoadError{Code: ErrCodeBuildFailed, Message: fmt.Sprintf("building schema: %v", err)}
	}
	return schema.LookupPath(cue.ParsePath("#Config")), nil
}

func load(src []byte, filename string) (Config, error) {
	ctx := cuecontext.New()

	value, err := configSchema(ctx)
	if err != nil {
		return Config{}, err
	}

	if src != nil {
		user := ctx.CompileBytes(src, cue.Filename(filename))
		if err := user.Err(); err != nil {
			return Config{}, newLoadError(ErrCodeLoadFailed, err)
		}
		value = value.Unify(user)
	}

	if err := value.Validate(cue.Concrete(true)); err != nil {
		return Config{}, newLoadError(ErrCodeInvalidConfig, err)
	}

	var fc fileConfig
	if err := value.Decode(&fc); err != nil {
		return Config{}, newLoadError(ErrCodeInvalidConfig, err)
	}

	return fc.resolve()
}

func (fc fileConfig) resolve() (Config, error) {
	workDelay, err := parseDelay("max_work_delay", fc.MaxWorkDelay)
	if err != nil {
		return Config{}, err
	}
	lockedDelay, err := parseDelay("max_locked_delay", fc.MaxLockedDelay)
	if err != nil {
		return Config{}, err
	}

	return Config{
		Workers:        fc.Workers,
		Script:         fc.Script,
		MaxWorkDelay:   workDelay,
		MaxLockedDelay: lockedDelay,
		DB:             fc.DB,
		LoadPath:       fc.LoadPath,
	}, nil
}

func parseDelay(field, s string) (time.Duration, error) {
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, &LoadError{Code: ErrCodeInvalidDuration, Message: fmt.Sprintf("%s: %v", field, err)}
	}
	if d < 0 {
		return 0, &LoadError{Code: ErrCodeInvalidDuration, Message: fmt.Sprintf("%s: must not be negative", field)}
	}
	return d, nil
}

// newLoadError keeps the position of the first CUE error, if any.
func newLoadError(code string, err error) *LoadError {
	le := &LoadError{Code: code, Message: err.Error()}
	if errs := cueerrors.Errors(err); len(errs) > 0 {
		le.Message = errs[0].Error()
		le.Pos = errs[0].Position()
	}
	return le
}
