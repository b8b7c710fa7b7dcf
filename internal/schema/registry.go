package schema

import (
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"path"
	"sort"
	"strings"
	"sync"

	"golang.org/x/sync/singleflight"
)

// Names of the built-in schema documents.
const (
	IndexerNotifiedSchema  = "IndexerNotified"
	IndexerCompletedSchema = "IndexerCompleted"
	IndexerEventSchema     = "IndexerEvent"
	ClientPolicySchema     = "ClientPolicy"
)

const definitionExt = ".yaml"

//go:embed definitions/*.yaml
var builtinDefinitions embed.FS

// Registry serves named schema documents from a file system.
// Documents are compiled on first use and cached for the lifetime of the registry.
type Registry struct {
	fsys    fs.FS
	formats *FormatRegistry

	mu           sync.RWMutex
	compiled     map[string]*Schema
	compileGroup singleflight.Group // Dedupe concurrent compilation
}

// NewRegistry creates a registry reading <name>.yaml documents from the root of fsys.
func NewRegistry(fsys fs.FS, formats *FormatRegistry) *Registry {
	if formats == nil {
		formats = NewDefaultFormatRegistry()
	}
	return &Registry{
		fsys:     fsys,
		formats:  formats,
		compiled: make(map[string]*Schema),
	}
}

// NewBuiltinRegistry returns a registry over the schemas embedded in the binary.
func NewBuiltinRegistry() *Registry {
	sub, err := fs.Sub(builtinDefinitions, "definitions")
	if err != nil {
		// The embed pattern guarantees the directory exists.
		panic(err)
	}
	return NewRegistry(sub, NewDefaultFormatRegistry())
}

// Get returns the compiled schema registered under name.
func (r *Registry) Get(name string) (*Schema, error) {
	if s := r.cached(name); s != nil {
		return s, nil
	}

	result, err, _ := r.compileGroup.Do(name, func() (interface{}, error) {
		// Double-check cache after acquiring singleflight lock
		if s := r.cached(name); s != nil {
			return s, nil
		}
		return r.compileNamed(name, nil)
	})
	if err != nil {
		return nil, err
	}
	return result.(*Schema), nil
}

// MustGet is Get for schemas that are known to ship with the binary.
func (r *Registry) MustGet(name string) *Schema {
	s, err := r.Get(name)
	if err != nil {
		panic(fmt.Sprintf("schema %s: %v", name, err))
	}
	return s
}

// Names lists the available schema names, sorted.
func (r *Registry) Names() ([]string, error) {
	matches, err := fs.Glob(r.fsys, "*"+definitionExt)
	if err != nil {
		return nil, fmt.Errorf("failed to list schemas: %w", err)
	}
	names := make([]string, 0, len(matches))
	for _, m := range matches {
		names = append(names, strings.TrimSuffix(path.Base(m), definitionExt))
	}
	sort.Strings(names)
	return names, nil
}

// Definition returns the raw document registered under name.
func (r *Registry) Definition(name string) (*Definition, error) {
	source, err := r.readSource(name)
	if err != nil {
		return nil, err
	}
	return &Definition{
		Name:        name,
		Source:      source,
		Fingerprint: ComputeFingerprint(source),
	}, nil
}

func (r *Registry) cached(name string) *Schema {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.compiled[name]
}

func (r *Registry) readSource(name string) ([]byte, error) {
	if name == "" || strings.ContainsAny(name, `/\.`) {
		return nil, fmt.Errorf("%w: %q", ErrNotFound, name)
	}
	source, err := fs.ReadFile(r.fsys, name+definitionExt)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read schema %s: %w", name, err)
	}
	return source, nil
}

// compileNamed compiles one document. References are compiled inline rather than through
// the singleflight group, so a reference cycle is reported instead of deadlocking.
func (r *Registry) compileNamed(name string, stack []string) (*Schema, error) {
	for _, seen := range stack {
		if seen == name {
			return nil, fmt.Errorf("%w: reference cycle %s -> %s", ErrInvalidDefinition, strings.Join(stack, " -> "), name)
		}
	}

	source, err := r.readSource(name)
	if err != nil {
		return nil, err
	}
	doc, err := parseDocument(source)
	if err != nil {
		return nil, fmt.Errorf("schema %s: %w", name, err)
	}

	stack = append(stack, name)
	resolve := func(ref string) (*Schema, error) {
		if s := r.cached(ref); s != nil {
			return s, nil
		}
		s, err := r.compileNamed(ref, stack)
		if errors.Is(err, ErrNotFound) {
			return nil, fmt.Errorf("%w: schema %s references unknown schema %s", ErrInvalidDefinition, name, ref)
		}
		return s, err
	}

	compiled, err := compile(name, doc, "", r.formats, resolve)
	if err != nil {
		return nil, fmt.Errorf("schema %s: %w", name, err)
	}

	r.mu.Lock()
	if existing, ok := r.compiled[name]; ok {
		compiled = existing
	} else {
		r.compiled[name] = compiled
	}
	r.mu.Unlock()

	return compiled, nil
}
