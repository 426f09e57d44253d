/*
Copyright 2022 GramLabs, Inc.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package sampler

import (
	"fmt"
	"sort"
	"sync"

	"github.com/thestormforge/optimize-driver/internal/searchspace"
)

// RandomSearch is the name of the pure random search sampler.
const RandomSearch = "randomsearch"

// Sampler draws concrete parameter assignments from a search space.
type Sampler interface {
	// Name returns the registered name of the sampler.
	Name() string
	// Sample returns one assignment covering every parameter of the search space.
	Sample(space *searchspace.SearchSpace) (searchspace.Assignments, error)
}

// Constructor creates a new sampler using the supplied seed; a zero seed
// should produce a non-deterministic sampler.
type Constructor func(seed int64) Sampler

var (
	registryMu sync.RWMutex
	registry   = map[string]Constructor{}
)

func init() {
	Register(RandomSearch, func(seed int64) Sampler { return NewRandom(seed) })
}

// Register adds a sampler constructor to the registry.
func Register(name string, ctor Constructor) {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry[name] = ctor
}

// New returns a sampler by name.
func New(name string, seed int64) (Sampler, error) {
	registryMu.RLock()
	ctor, ok := registry[name]
	registryMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("unknown optimizer %q, must be one of: %v", name, Names())
	}
	return ctor(seed), nil
}

// Names returns all registered sampler names.
func Names() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()
	names := make([]string, 0, len(registry))
	for k := range registry {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}
