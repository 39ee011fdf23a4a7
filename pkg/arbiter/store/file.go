package store

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"

	"policyguard/gateway/pkg/arbiter"
)

// Document is the on-disk policy format. A file may also hold a bare list
// of policies.
type Document struct {
	Policies []arbiter.Policy `json:"policies" yaml:"policies"`
}

var policyExtensions = []string{".yaml", ".yml", ".json"}

// FileStore serves policies loaded from a YAML or JSON file, or from every
// such file in a directory. A failed reload leaves the store unhealthy until
// the next successful one, so evaluations fail closed rather than run on a
// policy set nobody wrote.
type FileStore struct {
	path   string
	logger *slog.Logger
	mem    *MemoryStore

	mu       sync.RWMutex
	loadErr  error
	isDir    bool
	onReload func(error)

	// writeMu serializes read-modify-write cycles on the file.
	writeMu sync.Mutex
}

// NewFileStore loads policies from path. The initial load must succeed.
func NewFileStore(path string, logger *slog.Logger) (*FileStore, error) {
	if logger == nil {
		logger = slog.Default()
	}
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("failed to stat policy path %q: %w", path, err)
	}

	mem, _ := NewMemoryStore()
	s := &FileStore{
		path:   path,
		logger: logger.With("component", "policy.store.file"),
		mem:    mem,
		isDir:  info.IsDir(),
	}
	if err := s.Reload(); err != nil {
		return nil, err
	}
	return s, nil
}

// Path returns the file or directory the store reads.
func (s *FileStore) Path() string { return s.path }

// OnReload registers fn to be called after every reload attempt with its
// outcome.
func (s *FileStore) OnReload(fn func(error)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onReload = fn
}

// Reload re-reads every policy file.
func (s *FileStore) Reload() error {
	policies, err := s.load()
	if err != nil {
		s.mu.Lock()
		s.loadErr = err
		hook := s.onReload
		s.mu.Unlock()
		s.logger.Error("policy reload failed, store unhealthy", "path", s.path, "error", err)
		if hook != nil {
			hook(err)
		}
		return err
	}

	s.mem.Replace(policies)
	s.mu.Lock()
	s.loadErr = nil
	hook := s.onReload
	s.mu.Unlock()
	if hook != nil {
		hook(nil)
	}

	s.logger.Info("loaded policies", "path", s.path, "policy_count", len(policies))
	return nil
}

// Healthy returns the last reload error, or nil.
func (s *FileStore) Healthy() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.loadErr != nil {
		return fmt.Errorf("%w: %v", ErrUnhealthy, s.loadErr)
	}
	return nil
}

// GetActivePolicies implements arbiter.PolicyStore.
func (s *FileStore) GetActivePolicies(ctx context.Context, agentID, route string) ([]arbiter.Policy, error) {
	if err := s.Healthy(); err != nil {
		return nil, err
	}
	return s.mem.GetActivePolicies(ctx, agentID, route)
}

// List implements Writer.
func (s *FileStore) List(ctx context.Context) ([]arbiter.Policy, error) {
	return s.mem.List(ctx)
}

// Get implements Writer.
func (s *FileStore) Get(ctx context.Context, id string) (arbiter.Policy, error) {
	return s.mem.Get(ctx, id)
}

// Put implements Writer. Directory-backed stores are read-only.
func (s *FileStore) Put(ctx context.Context, p arbiter.Policy) error {
	return s.mutate(func() error { return s.mem.Put(ctx, p) })
}

// Delete implements Writer.
func (s *FileStore) Delete(ctx context.Context, id string) error {
	return s.mutate(func() error { return s.mem.Delete(ctx, id) })
}

// SetActive implements Writer.
func (s *FileStore) SetActive(ctx context.Context, id string, active bool) (arbiter.Policy, error) {
	var out arbiter.Policy
	err := s.mutate(func() error {
		var err error
		out, err = s.mem.SetActive(ctx, id, active)
		return err
	})
	return out, err
}

// Close implements Store.
func (s *FileStore) Close() error { return nil }

func (s *FileStore) mutate(apply func() error) error {
	if s.isDir {
		return fmt.Errorf("%w: %s is a directory", ErrReadOnly, s.path)
	}
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	if err := apply(); err != nil {
		return err
	}
	policies, _ := s.mem.List(context.Background())
	return s.save(policies)
}

func (s *FileStore) save(policies []arbiter.Policy) error {
	var (
		data []byte
		err  error
	)
	doc := Document{Policies: policies}
	if strings.EqualFold(filepath.Ext(s.path), ".json") {
		data, err = json.MarshalIndent(doc, "", "  ")
	} else {
		data, err = yaml.Marshal(doc)
	}
	if err != nil {
		return fmt.Errorf("failed to encode policies: %w", err)
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("failed to write policies: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("failed to replace %q: %w", s.path, err)
	}
	return nil
}

func (s *FileStore) load() ([]arbiter.Policy, error) {
	var files []string
	if s.isDir {
		err := filepath.WalkDir(s.path, func(path string, d os.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if d.IsDir() {
				if path != s.path && strings.HasPrefix(d.Name(), ".") {
					return filepath.SkipDir
				}
				return nil
			}
			if isPolicyFile(path) {
				files = append(files, path)
			}
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("failed to walk directory %q: %w", s.path, err)
		}
	} else {
		files = []string{s.path}
	}

	var policies []arbiter.Policy
	for _, f := range files {
		ps, err := ParseFile(f)
		if err != nil {
			return nil, err
		}
		policies = append(policies, ps...)
	}
	if err := validateAll(policies); err != nil {
		return nil, err
	}
	return policies, nil
}

// ParseFile reads one policy document.
func ParseFile(path string) ([]arbiter.Policy, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read policy file %q: %w", path, err)
	}
	parse := Parse
	if strings.EqualFold(filepath.Ext(path), ".json") {
		parse = parseJSON
	}
	policies, err := parse(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse policy file %q: %w", path, err)
	}
	return policies, nil
}

// Parse decodes a policy document. JSON is accepted as a subset of YAML.
// Empty input yields no policies.
func Parse(data []byte) ([]arbiter.Policy, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, nil
	}
	var doc Document
	if err := yaml.Unmarshal(data, &doc); err == nil {
		return doc.Policies, nil
	}
	var list []arbiter.Policy
	if err := yaml.Unmarshal(data, &list); err != nil {
		return nil, err
	}
	return list, nil
}

func parseJSON(data []byte) ([]arbiter.Policy, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, nil
	}
	var doc Document
	if err := json.Unmarshal(data, &doc); err == nil {
		return doc.Policies, nil
	}
	var list []arbiter.Policy
	if err := json.Unmarshal(data, &list); err != nil {
		return nil, err
	}
	return list, nil
}

func isPolicyFile(path string) bool {
	if strings.HasPrefix(filepath.Base(path), ".") {
		return false
	}
	ext := strings.ToLower(filepath.Ext(path))
	for _, e := range policyExtensions {
		if ext == e {
			return true
		}
	}
	return false
}
