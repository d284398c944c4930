// Package keys stores upstream API credentials.
//
// Lookup order: keys saved via the API (keys.json) first, then the
// provider's conventional environment variable. Key material is never
// returned to clients; the API only reports configured/not-configured.
package keys

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// envKeyMap maps a provider key to its conventional environment variable.
var envKeyMap = map[string]string{
	"openrouter": "OPENROUTER_API_KEY",
	"google":     "GOOGLE_API_KEY",
	"anthropic":  "ANTHROPIC_API_KEY",
	"openai":     "OPENAI_API_KEY",
}

// Store is a small mutable credential store backed by one JSON file.
// Safe for concurrent use.
type Store struct {
	mu   sync.Mutex
	path string
}

// NewStore creates a credential store persisting to the given file path.
func NewStore(path string) *Store {
	return &Store{path: path}
}

// load reads the saved keys. A missing or unreadable file degrades to an
// empty map; credentials are optional until a generation is attempted.
func (s *Store) load() map[string]string {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return map[string]string{}
	}
	keys := map[string]string{}
	if err := json.Unmarshal(data, &keys); err != nil {
		return map[string]string{}
	}
	return keys
}

func (s *Store) save(keys map[string]string) error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0o750); err != nil {
		return fmt.Errorf("create keys directory: %w", err)
	}
	data, err := json.MarshalIndent(keys, "", "  ")
	if err != nil {
		return fmt.Errorf("encode keys: %w", err)
	}
	if err := os.WriteFile(s.path, data, 0o600); err != nil {
		return fmt.Errorf("write keys file: %w", err)
	}
	return nil
}

// Get returns the credential for a provider, or "" when none is
// configured. Saved keys win over environment variables.
func (s *Store) Get(provider string) string {
	s.mu.Lock()
	defer s.mu.Unlock()

	if key := s.load()[provider]; key != "" {
		return key
	}
	if envVar, ok := envKeyMap[provider]; ok {
		return os.Getenv(envVar)
	}
	return ""
}

// Set saves or clears credentials. An empty value removes the saved key
// (the environment fallback still applies afterwards).
func (s *Store) Set(updates map[string]string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	keys := s.load()
	for provider, key := range updates {
		key = strings.TrimSpace(key)
		if key == "" {
			delete(keys, provider)
			continue
		}
		keys[provider] = key
	}
	return s.save(keys)
}

// Configured reports, per provider, whether a credential is available from
// either source. Never exposes key material.
func (s *Store) Configured(providers []string) map[string]bool {
	status := make(map[string]bool, len(providers))
	for _, p := range providers {
		status[p] = s.Get(p) != ""
	}
	return status
}
