package contentsource

import (
	"fmt"
	"sort"
	"sync"
)

// Connector implementations register themselves here, usually from an init
// function, the way database/sql drivers do. The engine itself ships no
// provider transport.
var (
	connectorsMu sync.RWMutex
	connectors   = make(map[string]Connector)
)

// Register makes a connector available under the given name. Registering a
// duplicate name panics, matching driver-registry convention.
func Register(name string, c Connector) {
	connectorsMu.Lock()
	defer connectorsMu.Unlock()
	if c == nil {
		panic("contentsource: Register connector is nil")
	}
	if _, dup := connectors[name]; dup {
		panic("contentsource: Register called twice for connector " + name)
	}
	connectors[name] = c
}

// Open returns the named connector. An empty name selects the sole
// registered connector, and errors when there are zero or several.
func Open(name string) (Connector, error) {
	connectorsMu.RLock()
	defer connectorsMu.RUnlock()

	if name != "" {
		c, ok := connectors[name]
		if !ok {
			return nil, fmt.Errorf("unknown content source %q (registered: %v)", name, registeredLocked())
		}
		return c, nil
	}

	switch len(connectors) {
	case 0:
		return nil, fmt.Errorf("no content source registered; link a connector into the binary")
	case 1:
		for _, c := range connectors {
			return c, nil
		}
	}
	return nil, fmt.Errorf("multiple content sources registered (%v); select one explicitly", registeredLocked())
}

// Registered lists the registered connector names, sorted.
func Registered() []string {
	connectorsMu.RLock()
	defer connectorsMu.RUnlock()
	return registeredLocked()
}

func registeredLocked() []string {
	names := make([]string, 0, len(connectors))
	for name := range connectors {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
