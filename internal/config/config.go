// Package config loads marginalia settings from a CUE file.
//
// The file is unified with an embedded #Config schema, so type errors and
// unknown fields are reported with file positions before anything runs.
// Precedence, highest first: command-line flags, the config file,
// Defaults().
package config

import (
	_ "embed"
	"errors"
	"fmt"
	"os"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueerrors "cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/token"
)

//go:embed schema.cue
var schemaCUE string

// EnvConfig names the config file when no --config flag is given.
const EnvConfig = "MARGINALIA_CONFIG"

// Config is the resolved configuration of one replica.
type Config struct {
	Replica string `json:"replica"`
	DB      string `json:"db"`
	Order   string `json:"order"`
	Author  Author `json:"author"`
	Log     Log    `json:"log"`
}

// Author identifies the local user.
type Author struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Log configures the slog handler.
type Log struct {
	Level  string `json:"level"`
	Format string `json:"format"`
}

// Defaults returns the configuration used when nothing is set. Replica
// is empty: the workspace assigns and persists one on first open.
func Defaults() Config {
	return Config{
		DB:     "marginalia.db",
		Order:  "hint",
		Author: Author{ID: "local", Name: "Local User"},
		Log:    Log{Level: "info", Format: "text"},
	}
}

// Error is a config file problem, with its position when CUE knows it.
type Error struct {
	Path    string
	Pos     token.Pos
	Message string
}

func (e *Error) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s", e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(), e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Path, e.Message)
}

// ResolvePath returns flagValue if set, else $MARGINALIA_CONFIG, else "".
func ResolvePath(flagValue string) string {
	if flagValue != "" {
		return flagValue
	}
	return os.Getenv(EnvConfig)
}

// Load reads and validates the CUE file at path and returns it layered
// over Defaults(). An empty path returns Defaults().
func Load(path string) (Config, error) {
	cfg := Defaults()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}
	return Parse(path, data)
}

// Parse validates CUE source against the schema and layers it over
// Defaults(). path is used for error positions only.
func Parse(path string, data []byte) (Config, error) {
	cfg := Defaults()

	ctx := cuecontext.New()
	schema := ctx.CompileString(schemaCUE, cue.Filename("schema.cue"))
	if err := schema.Err(); err != nil {
		return cfg, fmt.Errorf("compile config schema: %w", err)
	}

	file := ctx.CompileBytes(data, cue.Filename(path))
	if err := file.Err(); err != nil {
		return cfg, cueError(path, err)
	}

	unified := schema.LookupPath(cue.ParsePath("#Config")).Unify(file)
	if err := unified.Validate(cue.Concrete(true)); err != nil {
		return cfg, cueError(path, err)
	}

	var parsed Config
	if err := unified.Decode(&parsed); err != nil {
		return cfg, cueError(path, err)
	}
	return overlay(cfg, parsed), nil
}

// overlay returns base with every non-empty field of top applied.
func overlay(base, top Config) Config {
	set := func(dst *string, v string) {
		if v != "" {
			*dst = v
		}
	}
	set(&base.Replica, top.Replica)
	set(&base.DB, top.DB)
	set(&base.Order, top.Order)
	set(&base.Author.ID, top.Author.ID)
	set(&base.Author.Name, top.Author.Name)
	set(&base.Log.Level, top.Log.Level)
	set(&base.Log.Format, top.Log.Format)
	return base
}

// Override applies non-empty values from flags on top of c.
func (c Config) Override(flags Config) Config {
	return overlay(c, flags)
}

func cueError(path string, err error) error {
	errs := cueerrors.Errors(err)
	if len(errs) == 0 {
		return &Error{Path: path, Message: err.Error()}
	}
	first := errs[0]
	e := &Error{Path: path, Message: first.Error()}
	if positions := cueerrors.Positions(first); len(positions) > 0 {
		e.Pos = positions[0]
	}
	return e
}

// IsConfigError reports whether err came from an invalid config file.
func IsConfigError(err error) bool {
	var ce *Error
	return errors.As(err, &ce)
}
