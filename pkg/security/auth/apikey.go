package auth

import (
	"crypto/sha256"
	"sort"
	"sync"

	"policyguard/gateway/pkg/config"
)

// Validator validates admin keys against a configured set. Keys are indexed
// by their SHA-256 digest so the secrets are not held in memory.
type Validator struct {
	mu   sync.RWMutex
	keys map[[sha256.Size]byte]*KeyInfo
}

// NewValidator creates an empty validator.
func NewValidator() *Validator {
	return &Validator{keys: make(map[[sha256.Size]byte]*KeyInfo)}
}

// FromConfig creates a validator holding the configured admin keys.
func FromConfig(cfg config.SecurityConfig) *Validator {
	v := NewValidator()
	for _, k := range cfg.AdminKeys {
		v.Add(k.ID, k.Key, !k.Disabled)
	}
	return v
}

// Validate checks key and returns its info.
func (v *Validator) Validate(key string) (*KeyInfo, error) {
	if key == "" {
		return nil, ErrMissingKey
	}

	v.mu.RLock()
	defer v.mu.RUnlock()

	info, ok := v.keys[sha256.Sum256([]byte(key))]
	if !ok {
		return nil, ErrInvalidKey
	}
	if !info.Enabled {
		return nil, ErrKeyDisabled
	}
	return info, nil
}

// Add registers a key, replacing any key with the same secret.
func (v *Validator) Add(id, key string, enabled bool) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.keys[sha256.Sum256([]byte(key))] = &KeyInfo{ID: id, Enabled: enabled}
}

// Remove deletes every key with the given ID.
func (v *Validator) Remove(id string) {
	v.mu.Lock()
	defer v.mu.Unlock()
	for digest, info := range v.keys {
		if info.ID == id {
			delete(v.keys, digest)
		}
	}
}

// List returns the configured keys ordered by ID.
func (v *Validator) List() []KeyInfo {
	v.mu.RLock()
	defer v.mu.RUnlock()

	keys := make([]KeyInfo, 0, len(v.keys))
	for _, info := range v.keys {
		keys = append(keys, *info)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i].ID < keys[j].ID })
	return keys
}

// Len returns the number of configured keys.
func (v *Validator) Len() int {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return len(v.keys)
}
