package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// Registry holds every validated profile known to the orchestrator,
// resolved from either a single multi-profile document or a directory of
// single-profile files.
type Registry struct {
	profiles map[string]*Profile
}

// Profile returns the named profile, or false if undeclared.
func (r *Registry) Profile(name string) (*Profile, bool) {
	p, ok := r.profiles[name]
	return p, ok
}

// Names returns the declared profile names in sorted order.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.profiles))
	for name := range r.profiles {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Load reads a single YAML file. If it has a top-level `profiles:` mapping,
// every entry becomes a profile; otherwise the whole document is treated as
// one profile named "default".
func Load(path string) (*Registry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: reading %s: %w", path, err)
	}
	return loadBytes(data, path)
}

func loadBytes(data []byte, source string) (*Registry, error) {
	var probe map[string]yaml.Node
	if err := yaml.Unmarshal(data, &probe); err != nil {
		return nil, fmt.Errorf("config: parsing %s: %w", source, err)
	}

	reg := &Registry{profiles: make(map[string]*Profile)}

	if _, hasProfiles := probe["profiles"]; hasProfiles {
		var pd profilesDocument
		if err := yaml.Unmarshal(data, &pd); err != nil {
			return nil, fmt.Errorf("config: parsing %s: %w", source, err)
		}
		for name, doc := range pd.Profiles {
			profile, err := buildProfile(name, doc)
			if err != nil {
				return nil, err
			}
			reg.profiles[name] = profile
		}
		return reg, nil
	}

	var doc document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("config: parsing %s: %w", source, err)
	}
	profile, err := buildProfile("default", doc)
	if err != nil {
		return nil, err
	}
	reg.profiles["default"] = profile
	return reg, nil
}

// LoadDir reads every *.yaml / *.yml file directly under dir, treating each
// as a single-profile document keyed by its filename stem — a
// directory-of-profiles layout alongside the single multi-profile document
// Load reads.
func LoadDir(dir string) (*Registry, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("config: reading dir %s: %w", dir, err)
	}

	reg := &Registry{profiles: make(map[string]*Profile)}
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		ext := strings.ToLower(filepath.Ext(e.Name()))
		if ext != ".yaml" && ext != ".yml" {
			continue
		}
		path := filepath.Join(dir, e.Name())
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("config: reading %s: %w", path, err)
		}
		stem := strings.TrimSuffix(e.Name(), filepath.Ext(e.Name()))
		var doc document
		if err := yaml.Unmarshal(data, &doc); err != nil {
			return nil, fmt.Errorf("config: parsing %s: %w", path, err)
		}
		profile, err := buildProfile(stem, doc)
		if err != nil {
			return nil, err
		}
		reg.profiles[stem] = profile
	}
	if len(reg.profiles) == 0 {
		return nil, fmt.Errorf("config: no profile documents found in %s", dir)
	}
	return reg, nil
}
