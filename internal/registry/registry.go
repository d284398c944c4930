// Package registry holds the static provider/model registry.
//
// The registry is one JSON document (providers.json) mapping provider key
// to its model list. The streaming core only reads it, to decide which
// media types a model accepts; the management endpoints may rewrite it.
package registry

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
)

var (
	// ErrProviderNotFound indicates an unknown provider key.
	ErrProviderNotFound = errors.New("provider not found")

	// ErrModelExists indicates a model id already registered with the
	// provider.
	ErrModelExists = errors.New("model already exists")

	// ErrModelNotFound indicates an unknown model id.
	ErrModelNotFound = errors.New("model not found")
)

// Capability names match MIME top-level types so an attachment's category
// can be tested for membership directly.
const (
	CapabilityImage = "image"
	CapabilityVideo = "video"
	CapabilityAudio = "audio"
)

// Capabilities is the set of media types a model accepts.
type Capabilities map[string]bool

// Has reports whether the capability set contains the given media category.
func (c Capabilities) Has(category string) bool {
	return c[category]
}

// Model describes one registered model.
type Model struct {
	ID          string           `json:"id"`
	Name        string           `json:"name"`
	Description string           `json:"description,omitempty"`
	Multimodal  []string         `json:"multimodal,omitempty"`
	Params      []map[string]any `json:"params,omitempty"`
	Tools       []map[string]any `json:"tools,omitempty"`
}

// Provider describes one provider and its model list.
type Provider struct {
	Name   string  `json:"name,omitempty"`
	Models []Model `json:"models"`
}

// Registry reads and writes the providers.json document.
// Safe for concurrent use.
type Registry struct {
	mu   sync.RWMutex
	path string
}

// New creates a registry backed by the given providers.json path.
func New(path string) *Registry {
	return &Registry{path: path}
}

// load reads the document. Absence of the file, or an unreadable file,
// degrades to an empty registry; downstream that means "no capabilities",
// never an error.
func (r *Registry) load() map[string]Provider {
	data, err := os.ReadFile(r.path)
	if err != nil {
		return map[string]Provider{}
	}
	providers := map[string]Provider{}
	if err := json.Unmarshal(data, &providers); err != nil {
		return map[string]Provider{}
	}
	return providers
}

func (r *Registry) save(providers map[string]Provider) error {
	if err := os.MkdirAll(filepath.Dir(r.path), 0o750); err != nil {
		return fmt.Errorf("create registry directory: %w", err)
	}
	data, err := json.MarshalIndent(providers, "", "  ")
	if err != nil {
		return fmt.Errorf("encode registry: %w", err)
	}
	if err := os.WriteFile(r.path, data, 0o640); err != nil {
		return fmt.Errorf("write registry: %w", err)
	}
	return nil
}

// Providers returns all provider keys, sorted for stable output.
func (r *Registry) Providers() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	providers := r.load()
	keys := make([]string, 0, len(providers))
	for k := range providers {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Provider returns one provider's entry.
func (r *Registry) Provider(key string) (Provider, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.load()[key]
	if !ok {
		return Provider{}, ErrProviderNotFound
	}
	return p, nil
}

// Capabilities returns the declared multimodal set for a provider/model
// pair. A missing provider, model or registry degrades to the empty set,
// which downstream drops unsupported media from projection instead of
// sending it to a model that cannot consume it.
func (r *Registry) Capabilities(provider, model string) Capabilities {
	r.mu.RLock()
	defer r.mu.RUnlock()

	caps := Capabilities{}
	p, ok := r.load()[provider]
	if !ok {
		return caps
	}
	for _, m := range p.Models {
		if m.ID == model {
			for _, c := range m.Multimodal {
				caps[c] = true
			}
			return caps
		}
	}
	return caps
}

// AddModel appends a model to a provider's list.
func (r *Registry) AddModel(provider string, model Model) (Provider, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	providers := r.load()
	p, ok := providers[provider]
	if !ok {
		return Provider{}, ErrProviderNotFound
	}
	for _, m := range p.Models {
		if m.ID == model.ID {
			return Provider{}, ErrModelExists
		}
	}
	p.Models = append(p.Models, model)
	providers[provider] = p
	if err := r.save(providers); err != nil {
		return Provider{}, err
	}
	return p, nil
}

// RemoveModel deletes a model from a provider's list.
func (r *Registry) RemoveModel(provider, modelID string) (Provider, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	providers := r.load()
	p, ok := providers[provider]
	if !ok {
		return Provider{}, ErrProviderNotFound
	}
	kept := make([]Model, 0, len(p.Models))
	for _, m := range p.Models {
		if m.ID != modelID {
			kept = append(kept, m)
		}
	}
	if len(kept) == len(p.Models) {
		return Provider{}, ErrModelNotFound
	}
	p.Models = kept
	providers[provider] = p
	if err := r.save(providers); err != nil {
		return Provider{}, err
	}
	return p, nil
}

// ReorderModels rearranges a provider's models to follow the given id
// order. Models not mentioned keep their relative order and are appended
// after the reordered ones.
func (r *Registry) ReorderModels(provider string, modelIDs []string) (Provider, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	providers := r.load()
	p, ok := providers[provider]
	if !ok {
		return Provider{}, ErrProviderNotFound
	}

	byID := make(map[string]Model, len(p.Models))
	order := make([]string, 0, len(p.Models))
	for _, m := range p.Models {
		byID[m.ID] = m
		order = append(order, m.ID)
	}

	reordered := make([]Model, 0, len(p.Models))
	for _, id := range modelIDs {
		if m, ok := byID[id]; ok {
			reordered = append(reordered, m)
			delete(byID, id)
		}
	}
	for _, id := range order {
		if m, ok := byID[id]; ok {
			reordered = append(reordered, m)
		}
	}

	p.Models = reordered
	providers[provider] = p
	if err := r.save(providers); err != nil {
		return Provider{}, err
	}
	return p, nil
}
