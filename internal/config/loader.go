package config

import (
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueerrors "cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/token"
	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"github.com/roach88/keyflow/internal/keymap"
)

//go:embed schema.cue
var schemaSource string

// Error codes reported in LoadError.
const (
	ErrCodeRead    = "E001" // file could not be read
	ErrCodeFormat  = "E002" // unsupported file extension
	ErrCodeSyntax  = "E003" // YAML or CUE syntax error
	ErrCodeSchema  = "E004" // value does not match #Config
	ErrCodeInvalid = "E005" // bindings or defaults fail validation
)

// LoadError describes why a configuration could not be loaded.
type LoadError struct {
	Code    string
	Message string
	Path    string
	Pos     token.Pos
}

func (e *LoadError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s", e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(), e.Code, e.Message)
	}
	if e.Path != "" {
		return fmt.Sprintf("%s: %s: %s", e.Path, e.Code, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Config is a loaded and validated configuration.
type Config struct {
	Set      *keymap.Set
	Defaults Defaults
	Source   string
}

// Loader parses configuration files.
type Loader struct {
	// Base is overlaid by each file's defaults block.
	Base Defaults

	// NewUID names a key map that has no uid from the source it was read
	// from and its index in the keymaps list. It must be deterministic:
	// reloading an unchanged file has to yield the same UIDs so that the
	// running bindings are kept.
	NewUID func(source string, index int) string

	// CUE values from different contexts cannot be unified, and a context is
	// not safe for concurrent use.
	mu     sync.Mutex
	ctx    *cue.Context
	schema cue.Value
}

// NewLoader creates a loader with the given base defaults. Missing UIDs are
// filled with PositionalUID.
func NewLoader(base Defaults) *Loader {
	return &Loader{
		Base:   base,
		NewUID: PositionalUID,
	}
}

// keyMapNamespace roots the name-based UUIDs of key maps without a uid.
var keyMapNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("keyflow:keymap"))

// PositionalUID returns a UUIDv5 naming the index-th key map of source.
func PositionalUID(source string, index int) string {
	return uuid.NewSHA1(keyMapNamespace, fmt.Appendf(nil, "%s#keymaps[%d]", source, index)).String()
}

// Load reads and parses the file at path. The extension selects the format:
// .yaml, .yml or .cue.
func (l *Loader) Load(path string) (*Config, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, &LoadError{Code: ErrCodeRead, Message: err.Error(), Path: path}
	}
	return l.Parse(src, path)
}

// Parse parses src. filename only selects the format and labels errors.
func (l *Loader) Parse(src []byte, filename string) (*Config, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if err := l.init(); err != nil {
		return nil, err
	}

	var value cue.Value
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".yaml", ".yml":
		var data any
		if err := yaml.Unmarshal(src, &data); err != nil {
			return nil, &LoadError{Code: ErrCodeSyntax, Message: err.Error(), Path: filename}
		}
		if data == nil {
			data = map[string]any{}
		}
		value = l.ctx.Encode(data)
	case ".cue":
		value = l.ctx.CompileBytes(src, cue.Filename(filename))
	default:
		return nil, &LoadError{Code: ErrCodeFormat, Message: fmt.Sprintf("unsupported config format %q", filepath.Ext(filename)), Path: filename}
	}
	if err := value.Err(); err != nil {
		return nil, cueLoadError(ErrCodeSyntax, filename, err)
	}

	unified := l.schema.Unify(value)
	if err := unified.Validate(cue.Concrete(true)); err != nil {
		return nil, cueLoadError(ErrCodeSchema, filename, err)
	}

	var f File
	if err := unified.Decode(&f); err != nil {
		return nil, cueLoadError(ErrCodeSchema, filename, err)
	}

	return l.build(&f, filename)
}

func (l *Loader) init() error {
	if l.ctx != nil {
		return nil
	}
	ctx := cuecontext.New()
	schema := ctx.CompileString(schemaSource, cue.Filename("schema.cue")).LookupPath(cue.ParsePath("#Config"))
	if err := schema.Err(); err != nil {
		return fmt.Errorf("compiling config schema: %w", err)
	}
	l.ctx = ctx
	l.schema = schema
	return nil
}

func (l *Loader) build(f *File, filename string) (*Config, error) {
	defaults := f.Defaults.apply(l.Base)
	if err := defaults.Validate(); err != nil {
		return nil, &LoadError{Code: ErrCodeInvalid, Message: err.Error(), Path: filename}
	}

	newUID := l.NewUID
	if newUID == nil {
		newUID = PositionalUID
	}
	set, err := f.toSet(func(i int) string { return newUID(filename, i) })
	if err != nil {
		return nil, &LoadError{Code: ErrCodeInvalid, Message: err.Error(), Path: filename}
	}
	if err := set.Validate(); err != nil {
		return nil, &LoadError{Code: ErrCodeInvalid, Message: err.Error(), Path: filename}
	}

	return &Config{Set: set, Defaults: defaults, Source: filename}, nil
}

// cueLoadError keeps the position of the first CUE error.
func cueLoadError(code, filename string, err error) *LoadError {
	errs := cueerrors.Errors(err)
	if len(errs) == 0 {
		return &LoadError{Code: code, Message: err.Error(), Path: filename}
	}
	first := errs[0]
	le := &LoadError{Code: code, Message: first.Error(), Path: filename}
	if pos := cueerrors.Positions(first); len(pos) > 0 && pos[0].Filename() == filename {
		le.Pos = pos[0]
	}
	return le
}
