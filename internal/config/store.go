package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"PairSentinel/internal/model"
	"PairSentinel/internal/strategy"

	"gopkg.in/yaml.v3"
)

// ErrProfileNotFound is returned when no profile file matches a name.
var ErrProfileNotFound = errors.New("profile not found")

// Lookbacks are the bar counts the pipeline requests for the trend stages
// and for the signal and confirmation stages.
type Lookbacks struct {
	Trend  int
	Signal int
}

// DefaultLookbacks match the pipeline defaults.
var DefaultLookbacks = Lookbacks{Trend: 150, Signal: 200}

// ValidateSettings checks runtime settings against the default lookbacks.
func ValidateSettings(s model.Settings) error {
	return ValidateSettingsFor(s, DefaultLookbacks)
}

// ValidateSettingsFor checks runtime settings before they become visible.
// Indicator periods must fit in the bars each stage fetches, otherwise every
// chain would abort for insufficient history.
func ValidateSettingsFor(s model.Settings, lb Lookbacks) error {
	if err := validate.Struct(s); err != nil {
		return fmt.Errorf("invalid settings: %w", err)
	}
	p := s.Indicators
	if p.M15EMAPeriod > lb.Trend || p.H1EMAPeriod > lb.Trend {
		return fmt.Errorf("invalid settings: trend ema periods %d/%d exceed the %d bar trend lookback",
			p.M15EMAPeriod, p.H1EMAPeriod, lb.Trend)
	}
	if need := strategy.RequiredBars(p); need > lb.Signal {
		return fmt.Errorf("invalid settings: indicators need %d bars, signal lookback is %d", need, lb.Signal)
	}
	return nil
}

// Store owns the runtime settings. Readers get a copy; writers go through
// Update so every change is validated as a whole.
type Store struct {
	mu        sync.RWMutex
	settings  model.Settings
	dir       string
	lookbacks Lookbacks
}

// NewStore creates a store seeded with s. dir is the strategy profiles
// directory. Changes are checked against DefaultLookbacks until
// SetLookbacks is called.
func NewStore(s model.Settings, dir string) *Store {
	return &Store{settings: s.Clone(), dir: dir, lookbacks: DefaultLookbacks}
}

// SetLookbacks sets the bar counts later changes are checked against.
func (s *Store) SetLookbacks(lb Lookbacks) {
	s.mu.Lock()
	s.lookbacks = lb
	s.mu.Unlock()
}

// Get returns a copy of the current settings.
func (s *Store) Get() model.Settings {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.settings.Clone()
}

// Update applies fn to a copy and commits it if fn and validation succeed.
func (s *Store) Update(fn func(*model.Settings) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	next := s.settings.Clone()
	if err := fn(&next); err != nil {
		return err
	}
	if err := ValidateSettingsFor(next, s.lookbacks); err != nil {
		return err
	}
	s.settings = next
	return nil
}

// LoadProfile replaces every knob except the running flag and the symbol list
// with the named profile.
func (s *Store) LoadProfile(name string) error {
	s.mu.RLock()
	lb := s.lookbacks
	s.mu.RUnlock()
	profile, err := ReadProfile(s.dir, name, lb)
	if err != nil {
		return err
	}
	return s.Update(func(cur *model.Settings) error {
		profile.Running = cur.Running
		profile.Symbols = cur.Symbols
		*cur = profile
		return nil
	})
}

// Profiles lists the profile names available in the profiles directory.
func (s *Store) Profiles() ([]string, error) {
	return ListProfiles(s.dir)
}

// ReadProfile parses dir/name.yaml over the built-in defaults. Keys missing
// from the file keep their default value.
func ReadProfile(dir, name string, lb Lookbacks) (model.Settings, error) {
	name = strings.TrimSpace(name)
	if name == "" || strings.ContainsAny(name, `/\`) {
		return model.Settings{}, fmt.Errorf("profile %q: %w", name, ErrProfileNotFound)
	}
	path, err := profilePath(dir, name)
	if err != nil {
		return model.Settings{}, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return model.Settings{}, fmt.Errorf("read profile %s: %w", name, err)
	}

	out := model.DefaultSettings()
	out.ProfileName = ""
	if err := yaml.Unmarshal(data, &out); err != nil {
		return model.Settings{}, fmt.Errorf("parse profile %s: %w", name, err)
	}
	if out.ProfileName == "" {
		out.ProfileName = name
	}
	out.Running = false
	out.Symbols = nil
	if err := ValidateSettingsFor(out, lb); err != nil {
		return model.Settings{}, fmt.Errorf("profile %s: %w", name, err)
	}
	return out, nil
}

func profilePath(dir, name string) (string, error) {
	for _, ext := range []string{".yaml", ".yml"} {
		p := filepath.Join(dir, name+ext)
		if _, err := os.Stat(p); err == nil {
			return p, nil
		}
	}
	return "", fmt.Errorf("profile %q: %w", name, ErrProfileNotFound)
}

// ListProfiles returns the sorted profile names found in dir. A missing
// directory yields an empty list.
func ListProfiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("list profiles: %w", err)
	}
	var names []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		ext := filepath.Ext(e.Name())
		if ext == ".yaml" || ext == ".yml" {
			names = append(names, strings.TrimSuffix(e.Name(), ext))
		}
	}
	sort.Strings(names)
	return names, nil
}
