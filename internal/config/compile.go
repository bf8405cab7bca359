package config

import (
	"fmt"
	"os"
	"sort"

	"github.com/yavdl/yavdl/internal/selector"
	"github.com/yavdl/yavdl/internal/types"
	"github.com/yavdl/yavdl/internal/urlmangle"
)

// Runtime is the compiled form of a validated Config: explicit data
// tables, populated once before any pipeline component runs.
type Runtime struct {
	Registry *urlmangle.Registry
	Lists    map[string]selector.PreferenceList

	// DefaultList is the marked default, or the built-in list when no
	// lists are configured.
	DefaultList selector.PreferenceList
}

// Compile builds the runtime tables from a validated Config. Script
// manglers are compiled here; a script that fails to compile aborts the
// load before any network activity begins.
func (c *Config) Compile() (*Runtime, error) {
	rt := &Runtime{
		Registry:    urlmangle.NewRegistry(),
		Lists:       make(map[string]selector.PreferenceList),
		DefaultList: selector.DefaultPreferenceList(),
	}

	builtin := selector.DefaultPreferenceList()
	rt.Lists[builtin.Name] = builtin

	for _, list := range c.PreferenceLists {
		entries := make([]types.FormatID, 0, len(list.Formats))
		for _, raw := range list.Formats {
			id, err := types.ParseFormatID(raw)
			if err != nil {
				return nil, fmt.Errorf("preference list %q: %w", list.Name, err)
			}
			entries = append(entries, id)
		}
		compiled := selector.PreferenceList{Name: list.Name, Entries: entries}
		rt.Lists[list.Name] = compiled
		if list.Default {
			rt.DefaultList = compiled
		}
	}

	for _, m := range c.Manglers {
		transform, err := compileMangler(m)
		if err != nil {
			return nil, err
		}
		if err := rt.Registry.Register(m.Name, transform); err != nil {
			return nil, err
		}
		if m.Default {
			if err := rt.Registry.SetDefault(m.Name); err != nil {
				return nil, err
			}
		}
	}
	return rt, nil
}

func compileMangler(m Mangler) (urlmangle.Transform, error) {
	switch m.Type {
	case "gateway":
		return urlmangle.NewGatewayTransform(m.BaseURL), nil
	case "script":
		source := m.Script
		if m.ScriptFile != "" {
			data, err := os.ReadFile(m.ScriptFile)
			if err != nil {
				return nil, fmt.Errorf("mangler %q: %w", m.Name, err)
			}
			source = string(data)
		}
		return urlmangle.NewScriptTransform(m.Name, source)
	default:
		return nil, fmt.Errorf("mangler %q: unknown type %q", m.Name, m.Type)
	}
}

// List resolves a named preference list, falling back to the default
// when name is empty. Unknown names are an error listing known lists.
func (rt *Runtime) List(name string) (selector.PreferenceList, error) {
	if name == "" {
		return rt.DefaultList, nil
	}
	list, ok := rt.Lists[name]
	if !ok {
		names := make([]string, 0, len(rt.Lists))
		for n := range rt.Lists {
			names = append(names, n)
		}
		sort.Strings(names)
		return selector.PreferenceList{}, fmt.Errorf("unknown preference list %q; known lists are %v", name, names)
	}
	return list, nil
}
