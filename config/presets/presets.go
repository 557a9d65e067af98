package presets

import (
	"fmt"
	"maps"
	"slices"

	"github.com/bisq-network/bisq-sub006/config"
)

var presets = map[string]config.Config{}

func register(name string, preset config.Config) {
	if _, exist := presets[name]; exist {
		panic(fmt.Sprintf("can't register preset %s more than once", name))
	}
	presets[name] = preset
}

// Options returns the registered preset names.
func Options() []string {
	return slices.Sorted(maps.Keys(presets))
}

// Get returns a copy of the named preset.
func Get(name string) (config.Config, error) {
	preset, exist := presets[name]
	if !exist {
		return config.Config{}, fmt.Errorf("preset %s is not registered. select one from %v", name, Options())
	}
	preset.Sync.Peers = slices.Clone(preset.Sync.Peers)
	return preset, nil
}
