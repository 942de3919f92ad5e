package artifact

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

// MemoryStore keeps artifacts in process memory.
//
// A single mutex guards version allocation so concurrent saves to the same
// name observe distinct, consecutive versions.
type MemoryStore struct {
	opts     options
	mu       sync.RWMutex
	versions map[Scope]map[string][]*Artifact
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore(opts ...StoreOption) *MemoryStore {
	return &MemoryStore{
		opts:     buildOptions(opts),
		versions: make(map[Scope]map[string][]*Artifact),
	}
}

// Save appends a new version of name.
func (s *MemoryStore) Save(ctx context.Context, scope Scope, name, mimeType string, data []byte) (int, error) {
	if name == "" {
		return 0, fmt.Errorf("artifact name is required")
	}
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	payload := make([]byte, len(data))
	copy(payload, data)

	s.mu.Lock()
	defer s.mu.Unlock()

	names, ok := s.versions[scope]
	if !ok {
		names = make(map[string][]*Artifact)
		s.versions[scope] = names
	}

	version := len(names[name]) + 1
	names[name] = append(names[name], &Artifact{
		Name:      name,
		MIMEType:  mimeType,
		Data:      payload,
		Version:   version,
		CreatedAt: s.opts.now().UTC(),
	})
	return version, nil
}

// Load returns one version of name.
func (s *MemoryStore) Load(ctx context.Context, scope Scope, name string, version int) (*Artifact, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	history := s.versions[scope][name]
	if len(history) == 0 {
		return nil, NewNotFoundError(name, version)
	}
	if version == Latest {
		return clone(history[len(history)-1]), nil
	}
	if version < 1 || version > len(history) {
		return nil, NewNotFoundError(name, version)
	}
	return clone(history[version-1]), nil
}

// Versions lists the stored versions of name.
func (s *MemoryStore) Versions(ctx context.Context, scope Scope, name string) ([]int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	history := s.versions[scope][name]
	if len(history) == 0 {
		return nil, NewNotFoundError(name, Latest)
	}
	out := make([]int, len(history))
	for i, a := range history {
		out[i] = a.Version
	}
	return out, nil
}

// Names lists every name saved in scope.
func (s *MemoryStore) Names(ctx context.Context, scope Scope) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]string, 0, len(s.versions[scope]))
	for name := range s.versions[scope] {
		out = append(out, name)
	}
	sort.Strings(out)
	return out, nil
}

func clone(a *Artifact) *Artifact {
	c := *a
	c.Data = make([]byte, len(a.Data))
	copy(c.Data, a.Data)
	return &c
}

// Ensure MemoryStore implements Store.
var _ Store = (*MemoryStore)(nil)
