package schema_test

import (
	"errors"
	"sync"
	"testing"
	"testing/fstest"

	"github.com/aevon-lab/indexer-metrics-collector/internal/schema"
	"github.com/stretchr/testify/require"
)

func TestBuiltinRegistry_Names(t *testing.T) {
	names, err := schema.NewBuiltinRegistry().Names()
	require.NoError(t, err)
	require.Equal(t, []string{
		schema.ClientPolicySchema,
		schema.IndexerCompletedSchema,
		schema.IndexerEventSchema,
		schema.IndexerNotifiedSchema,
	}, names)
}

func TestBuiltinRegistry_CompilesEverySchema(t *testing.T) {
	reg := schema.NewBuiltinRegistry()
	names, err := reg.Names()
	require.NoError(t, err)

	for _, name := range names {
		s, err := reg.Get(name)
		require.NoError(t, err, name)
		require.Equal(t, name, s.Name())
	}
}

func TestRegistry_GetCachesCompiledSchema(t *testing.T) {
	reg := schema.NewBuiltinRegistry()

	first, err := reg.Get(schema.IndexerNotifiedSchema)
	require.NoError(t, err)
	second, err := reg.Get(schema.IndexerNotifiedSchema)
	require.NoError(t, err)
	require.Same(t, first, second)
}

func TestRegistry_ConcurrentGet(t *testing.T) {
	reg := schema.NewBuiltinRegistry()

	const workers = 16
	results := make([]*schema.Schema, workers)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			s, err := reg.Get(schema.IndexerEventSchema)
			if err == nil {
				results[i] = s
			}
		}(i)
	}
	wg.Wait()

	for i := 1; i < workers; i++ {
		require.NotNil(t, results[i])
		require.Same(t, results[0], results[i])
	}
}

func TestRegistry_ReferencesShareCompiledSchema(t *testing.T) {
	reg := schema.NewBuiltinRegistry()

	event, err := reg.Get(schema.IndexerEventSchema)
	require.NoError(t, err)
	notified, err := reg.Get(schema.IndexerNotifiedSchema)
	require.NoError(t, err)

	require.Len(t, event.OneOf, 2)
	require.Same(t, notified, event.OneOf[0])
}

func TestRegistry_NotFound(t *testing.T) {
	reg := schema.NewBuiltinRegistry()

	for _, name := range []string{"Missing", "", "../secrets", "a.b"} {
		_, err := reg.Get(name)
		require.Error(t, err)
		require.True(t, errors.Is(err, schema.ErrNotFound), name)
	}
}

func TestRegistry_Definition(t *testing.T) {
	reg := schema.NewBuiltinRegistry()

	def, err := reg.Definition(schema.IndexerCompletedSchema)
	require.NoError(t, err)
	require.Equal(t, schema.IndexerCompletedSchema, def.Name)
	require.Contains(t, string(def.Source), "IndexerCompleted")
	require.Equal(t, schema.ComputeFingerprint(def.Source), def.Fingerprint)
	require.Len(t, def.Fingerprint, 64)
}

func TestRegistry_InvalidDefinitions(t *testing.T) {
	tests := []struct {
		name   string
		source string
	}{
		{"unsupported type", "type: decimal"},
		{"format without string", "type: integer\nformat: uri"},
		{"unknown format", "type: string\nformat: email"},
		{"minimum on string", "type: string\nminimum: 1"},
		{"minimum above maximum", "type: integer\nminimum: 5\nmaximum: 1"},
		{"required not declared", "type: object\nproperties:\n  a:\n    type: string\nrequired: [b]"},
		{"unknown reference", "oneOf:\n  - $ref: Nowhere"},
		{"broken yaml", "type: [object"},
		{"bad additionalProperties", "type: object\nadditionalProperties: maybe"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fsys := fstest.MapFS{"Broken.yaml": {Data: []byte(tt.source)}}
			reg := schema.NewRegistry(fsys, nil)

			_, err := reg.Get("Broken")
			require.Error(t, err)
			require.True(t, errors.Is(err, schema.ErrInvalidDefinition), err.Error())
		})
	}
}

func TestRegistry_ReferenceCycle(t *testing.T) {
	fsys := fstest.MapFS{
		"A.yaml": {Data: []byte("oneOf:\n  - $ref: B\n  - type: string")},
		"B.yaml": {Data: []byte("oneOf:\n  - $ref: A\n  - type: integer")},
	}
	reg := schema.NewRegistry(fsys, nil)

	_, err := reg.Get("A")
	require.Error(t, err)
	require.True(t, errors.Is(err, schema.ErrInvalidDefinition))
	require.Contains(t, err.Error(), "reference cycle")
}
