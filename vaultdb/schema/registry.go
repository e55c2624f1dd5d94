package schema

import (
	"fmt"
	"sort"
	"sync"
)

var (
	schemasMu sync.RWMutex
	schemas   = make(map[string]*Schema)
)

// Register makes a declared schema available under the given name, so that
// the migration generator can resolve it through the configuration. It
// panics when the name is already taken, as that is always a programming
// error.
func Register(name string, s *Schema) {
	schemasMu.Lock()
	defer schemasMu.Unlock()

	if _, ok := schemas[name]; ok {
		panic(fmt.Sprintf("schema: %q is already registered", name))
	}
	schemas[name] = s
}

// Lookup returns the declared schema registered under the given name.
func Lookup(name string) (*Schema, error) {
	schemasMu.RLock()
	defer schemasMu.RUnlock()

	s, ok := schemas[name]
	if !ok {
		return nil, fmt.Errorf("no schema registered as %q, known schemas: %v", name, names())
	}
	return s, nil
}

func names() []string {
	nn := make([]string, 0, len(schemas))
	for name := range schemas {
		nn = append(nn, name)
	}
	sort.Strings(nn)
	return nn
}
