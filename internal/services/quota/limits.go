package quota

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// limitsFile is the on-disk shape of a limits override file:
//
//	flightaware:
//	  enabled: true
//	  windows:
//	    - {name: minute, window: 1m, ceiling: 10}
type limitsFile map[string]struct {
	Enabled *bool `yaml:"enabled"`
	Windows []struct {
		Name    string `yaml:"name"`
		Window  string `yaml:"window"`
		Ceiling int64  `yaml:"ceiling"`
	} `yaml:"windows"`
}

// LoadLimits reads limiter overrides from a YAML file. Limiters absent from
// the file keep the config in base; a limiter listed without windows keeps
// its base windows.
func LoadLimits(path string, base map[string]Config) (map[string]Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read limits file: %w", err)
	}
	return ParseLimits(data, base)
}

// ParseLimits is LoadLimits on raw YAML.
func ParseLimits(data []byte, base map[string]Config) (map[string]Config, error) {
	var file limitsFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse limits file: %w", err)
	}

	out := make(map[string]Config, len(base))
	for name, cfg := range base {
		out[name] = cfg
	}

	for name, entry := range file {
		cfg := out[name]
		if entry.Enabled != nil {
			cfg.Enabled = *entry.Enabled
		}

		if len(entry.Windows) > 0 {
			windows := make([]Window, 0, len(entry.Windows))
			seen := make(map[string]bool, len(entry.Windows))
			for _, w := range entry.Windows {
				if w.Name == "" {
					return nil, fmt.Errorf("limiter %s: window without name", name)
				}
				if seen[w.Name] {
					return nil, fmt.Errorf("limiter %s: duplicate window %q", name, w.Name)
				}
				seen[w.Name] = true

				d, err := time.ParseDuration(w.Window)
				if err != nil || d <= 0 {
					return nil, fmt.Errorf("limiter %s: invalid duration %q for window %s", name, w.Window, w.Name)
				}
				if w.Ceiling < 0 {
					return nil, fmt.Errorf("limiter %s: negative ceiling for window %s", name, w.Name)
				}
				windows = append(windows, Window{Name: w.Name, Duration: d, Ceiling: w.Ceiling})
			}
			cfg.Windows = windows
		}

		out[name] = cfg
	}

	return out, nil
}
