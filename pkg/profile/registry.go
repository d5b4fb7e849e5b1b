package profile

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"gopkg.in/fsnotify.v1"
	"gopkg.in/yaml.v3"
)

// Registry manages a collection of parse profiles.
type Registry interface {
	// Register adds a profile to the registry
	Register(profile *Profile) error

	// Unregister removes a profile from the registry
	Unregister(profileID string) error

	// Get returns a profile by its ID
	Get(profileID string) (*Profile, bool)

	// List returns all registered profiles sorted by ID
	List() []*Profile

	// Reload reloads all profiles from the configured directory
	Reload() error

	// Watch starts watching the profile directory for changes
	Watch() error

	// StopWatch stops watching the profile directory
	StopWatch()

	// LoadDirectory loads all profiles from a directory
	LoadDirectory(dir string) error

	// LoadFile loads a single profile file
	LoadFile(path string) error
}

// DefaultRegistry is the default implementation of Registry. The built-in
// profile is always present unless a loaded file overrides it.
type DefaultRegistry struct {
	mu       sync.RWMutex
	profiles map[string]*Profile
	dir      string
	watcher  *fsnotify.Watcher
	stopChan chan struct{}
	onChange func(event string, profile *Profile)
	logger   *slog.Logger
}

// NewRegistry creates a registry holding the built-in profile.
func NewRegistry(logger *slog.Logger) *DefaultRegistry {
	if logger == nil {
		logger = slog.Default()
	}
	return &DefaultRegistry{
		profiles: builtins(),
		logger:   logger,
	}
}

// NewRegistryWithDirectory creates a registry and loads profiles from dir.
func NewRegistryWithDirectory(dir string, logger *slog.Logger) (*DefaultRegistry, error) {
	r := NewRegistry(logger)
	if err := r.LoadDirectory(dir); err != nil {
		return nil, err
	}
	return r, nil
}

// builtins returns a fresh profile map holding only the built-in profile.
func builtins() map[string]*Profile {
	builtin := Default()
	if err := builtin.Compile(); err != nil {
		panic(fmt.Sprintf("built-in profile does not compile: %v", err))
	}
	return map[string]*Profile{builtin.ProfileID: builtin}
}

// Register adds a profile. A profile with the same ID and version as an
// existing one is rejected; a different version replaces it.
func (r *DefaultRegistry) Register(profile *Profile) error {
	if err := prepare(profile); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	return add(r.profiles, profile)
}

// prepare validates and compiles a profile before it is added anywhere.
func prepare(profile *Profile) error {
	if profile == nil {
		return fmt.Errorf("profile cannot be nil")
	}
	if err := profile.Validate(); err != nil {
		return fmt.Errorf("invalid profile: %w", err)
	}
	if !profile.IsCompiled() {
		if err := profile.Compile(); err != nil {
			return fmt.Errorf("compiling profile %q: %w", profile.ProfileID, err)
		}
	}
	return nil
}

func add(profiles map[string]*Profile, profile *Profile) error {
	if existing, ok := profiles[profile.ProfileID]; ok && existing.Version == profile.Version {
		return fmt.Errorf("profile %q version %s already registered", profile.ProfileID, profile.Version)
	}
	profiles[profile.ProfileID] = profile
	return nil
}

// Unregister removes a profile.
func (r *DefaultRegistry) Unregister(profileID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.profiles[profileID]; !ok {
		return fmt.Errorf("profile %q not found", profileID)
	}

	delete(r.profiles, profileID)
	return nil
}

// Get returns a profile by ID.
func (r *DefaultRegistry) Get(profileID string) (*Profile, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	profile, ok := r.profiles[profileID]
	return profile, ok
}

// List returns all registered profiles sorted by ID.
func (r *DefaultRegistry) List() []*Profile {
	r.mu.RLock()
	defer r.mu.RUnlock()

	profiles := make([]*Profile, 0, len(r.profiles))
	for _, p := range r.profiles {
		profiles = append(profiles, p)
	}
	sort.Slice(profiles, func(i, j int) bool {
		return profiles[i].ProfileID < profiles[j].ProfileID
	})
	return profiles
}

// Count returns the number of registered profiles.
func (r *DefaultRegistry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.profiles)
}

// LoadDirectory registers every *.yaml and *.yml file in dir and remembers
// dir for Reload and Watch. A missing directory is not an error. A bad file
// does not stop the others from loading; all failures are returned together.
func (r *DefaultRegistry) LoadDirectory(dir string) error {
	r.mu.Lock()
	r.dir = dir
	r.mu.Unlock()

	return r.loadDirectory(dir, r.Register)
}

// loadDirectory decodes the profile files in dir and hands each to register.
func (r *DefaultRegistry) loadDirectory(dir string, register func(*Profile) error) error {
	if info, err := os.Stat(dir); os.IsNotExist(err) {
		return nil
	} else if err != nil {
		return fmt.Errorf("profile directory %s: %w", dir, err)
	} else if !info.IsDir() {
		return fmt.Errorf("profile directory %s: not a directory", dir)
	}

	files, err := profileFiles(dir)
	if err != nil {
		return err
	}

	var failures []error
	for _, file := range files {
		if err := r.loadFile(file, register); err != nil {
			failures = append(failures, fmt.Errorf("%s: %w", filepath.Base(file), err))
		}
	}
	return errors.Join(failures...)
}

// profileFiles lists the YAML files directly inside dir in name order.
func profileFiles(dir string) ([]string, error) {
	var files []string
	for _, pattern := range []string{"*.yaml", "*.yml"} {
		matches, err := filepath.Glob(filepath.Join(dir, pattern))
		if err != nil {
			return nil, fmt.Errorf("listing profiles in %s: %w", dir, err)
		}
		files = append(files, matches...)
	}
	sort.Strings(files)
	return files, nil
}

// LoadFile decodes and registers one profile file. Unknown keys are
// rejected so a misspelled pattern name is not silently ignored.
func (r *DefaultRegistry) LoadFile(path string) error {
	return r.loadFile(path, r.Register)
}

func (r *DefaultRegistry) loadFile(path string, register func(*Profile) error) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	decoder := yaml.NewDecoder(f)
	decoder.KnownFields(true)

	profile := &Profile{}
	if err := decoder.Decode(profile); err != nil {
		return fmt.Errorf("decoding %s: %w", path, err)
	}
	profile.file = path

	if err := register(profile); err != nil {
		return fmt.Errorf("registering profile from %s: %w", path, err)
	}
	r.logger.Debug("profile loaded", "profile", profile.ProfileID, "version", profile.Version, "file", path)
	return nil
}

// Reload rebuilds the registry from the built-in profile and the remembered
// directory. The new set replaces the old one in a single step, so Get
// never observes a partly loaded registry. Files that fail to load are
// reported and left out.
func (r *DefaultRegistry) Reload() error {
	dir := r.directory()
	if dir == "" {
		return fmt.Errorf("reload: no profile directory loaded")
	}

	fresh := builtins()
	err := r.loadDirectory(dir, func(p *Profile) error {
		if err := prepare(p); err != nil {
			return err
		}
		return add(fresh, p)
	})

	r.mu.Lock()
	r.profiles = fresh
	r.mu.Unlock()

	return err
}

func (r *DefaultRegistry) directory() string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.dir
}

// SetOnChange sets the callback run after a watched file is applied. The
// event is "create", "modify" or "remove"; profile is nil for "remove".
func (r *DefaultRegistry) SetOnChange(fn func(event string, profile *Profile)) {
	r.onChange = fn
}

// Watch reloads profiles as files in the remembered directory change. Call
// StopWatch to release the watcher.
func (r *DefaultRegistry) Watch() error {
	dir := r.directory()
	if dir == "" {
		return fmt.Errorf("watch: no profile directory loaded")
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("watch: %w", err)
	}
	if err := watcher.Add(dir); err != nil {
		watcher.Close()
		return fmt.Errorf("watch %s: %w", dir, err)
	}

	r.watcher = watcher
	r.stopChan = make(chan struct{})
	go r.watchLoop(dir, watcher, r.stopChan)
	return nil
}

func (r *DefaultRegistry) watchLoop(dir string, watcher *fsnotify.Watcher, stop <-chan struct{}) {
	for {
		select {
		case <-stop:
			return
		case event, ok := <-watcher.Events:
			if !ok {
				return
			}
			if isYAML(event.Name) {
				r.apply(event)
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			r.logger.Warn("profile watcher error", "dir", dir, "error", err)
		}
	}
}

// apply folds one file event into the registry.
func (r *DefaultRegistry) apply(event fsnotify.Event) {
	var kind string
	switch {
	case event.Op&fsnotify.Create != 0:
		kind = "create"
	case event.Op&fsnotify.Write != 0:
		kind = "modify"
	case event.Op&(fsnotify.Remove|fsnotify.Rename) != 0:
		kind = "remove"
	default:
		return
	}

	if kind == "remove" {
		// The removed file's profile id is unknown, so rebuild from disk.
		if err := r.Reload(); err != nil {
			r.logger.Warn("reloading profiles failed", "file", event.Name, "error", err)
		}
		r.notify(kind, nil)
		return
	}

	if err := r.LoadFile(event.Name); err != nil {
		r.logger.Warn("reloading profile failed", "file", event.Name, "error", err)
		return
	}
	if profile, ok := r.profileByFile(event.Name); ok {
		r.notify(kind, profile)
	}
}

func (r *DefaultRegistry) notify(kind string, profile *Profile) {
	if r.onChange != nil {
		r.onChange(kind, profile)
	}
}

func (r *DefaultRegistry) profileByFile(path string) (*Profile, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, p := range r.profiles {
		if p.file == path {
			return p, true
		}
	}
	return nil, false
}

// StopWatch releases the watcher started by Watch. It is safe to call when
// no watch is running.
func (r *DefaultRegistry) StopWatch() {
	if r.stopChan != nil {
		close(r.stopChan)
		r.stopChan = nil
	}
	if r.watcher != nil {
		r.watcher.Close()
		r.watcher = nil
	}
}

func isYAML(name string) bool {
	ext := filepath.Ext(name)
	return ext == ".yaml" || ext == ".yml"
}
