package edge

import (
	"fmt"
	"sort"
	"sync"
)

// EngineConstructor builds a Detector; workers is a parallelism hint
type EngineConstructor func(workers int) (Detector, error)

var (
	enginesMu sync.RWMutex
	engines   = map[string]EngineConstructor{
		"native": func(workers int) (Detector, error) {
			return NewCannyDetector(workers), nil
		},
	}
)

// RegisterEngine makes an engine available by name. Optional engines
// register themselves from init when their build tag is set.
func RegisterEngine(name string, ctor EngineConstructor) {
	enginesMu.Lock()
	defer enginesMu.Unlock()
	engines[name] = ctor
}

// NewEngine constructs the named engine
func NewEngine(name string, workers int) (Detector, error) {
	enginesMu.RLock()
	ctor, ok := engines[name]
	enginesMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("edge engine %q is not available (built with: %v)", name, Engines())
	}
	return ctor(workers)
}

// Engines lists the registered engine names
func Engines() []string {
	enginesMu.RLock()
	defer enginesMu.RUnlock()
	names := make([]string, 0, len(engines))
	for name := range engines {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
