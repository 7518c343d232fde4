package app

import (
	"fmt"
	"sort"
	"sync"
)

var (
	registryMu     sync.RWMutex
	runnerRegistry = map[string]func() IRunner{}
)

// RegisterRunner registers a runner factory by name. Registering the same
// name twice is a programming error.
func RegisterRunner(name string, factory func() IRunner) {
	registryMu.Lock()
	defer registryMu.Unlock()
	if _, ok := runnerRegistry[name]; ok {
		panic(fmt.Sprintf("runner %s registered twice", name))
	}
	runnerRegistry[name] = factory
}

// ResolveRunner returns a new runner instance for the given name.
func ResolveRunner(name string) (IRunner, error) {
	registryMu.RLock()
	factory, ok := runnerRegistry[name]
	registryMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("runner %s not registered", name)
	}
	return factory(), nil
}

func MustResolveRunner(name string) IRunner {
	r, err := ResolveRunner(name)
	if err != nil {
		panic(err)
	}
	return r
}

// RunnerList returns the registered names in lexical order.
func RunnerList() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()
	rs := make([]string, 0, len(runnerRegistry))
	for k := range runnerRegistry {
		rs = append(rs, k)
	}
	sort.Strings(rs)
	return rs
}
