package insertbot

import (
	"fmt"
	"sort"
	"sync"
)

var (
	wlRegistryMu sync.RWMutex
	wlRegistry   = make(map[string]Workload)
)

func RegisterWorkload(name string, w Workload) {
	wlRegistryMu.Lock()
	defer wlRegistryMu.Unlock()
	wlRegistry[name] = w
}

func WorkloadFromString(name string) (Workload, error) {
	wlRegistryMu.RLock()
	defer wlRegistryMu.RUnlock()
	w, ok := wlRegistry[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownWorkload, name)
	}
	return w, nil
}

// Workloads registered workload names, sorted
func Workloads() []string {
	wlRegistryMu.RLock()
	defer wlRegistryMu.RUnlock()
	names := make([]string, 0, len(wlRegistry))
	for n := range wlRegistry {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
