// Package agent manages the registry of reviewer agent candidates.
//
// A candidate describes how to launch an external ACP-speaking agent process.
// Built-in candidates cover the supported agents; an agents.yaml file can add
// or override candidates without rebuilding.
package agent

import (
	"fmt"
	"os"
	"os/exec"
	"sort"
	"sync"

	"gopkg.in/yaml.v3"
)

// Candidate describes one launchable reviewer agent.
type Candidate struct {
	ID      string   `yaml:"id" json:"id"`
	Label   string   `yaml:"label" json:"label"`
	Command string   `yaml:"command" json:"command"`
	Args    []string `yaml:"args" json:"args,omitempty"`
}

// Available reports whether the candidate's command resolves on PATH.
func (c *Candidate) Available() bool {
	if c.Command == "" {
		return false
	}
	_, err := exec.LookPath(c.Command)
	return err == nil
}

// Registry manages agent candidates.
type Registry struct {
	mu         sync.RWMutex
	candidates map[string]*Candidate
	defaultID  string
}

// DefaultID is the candidate used when no agent is selected and no default
// was configured.
const DefaultID = "codex"

// builtIns returns the built-in candidates.
func builtIns() map[string]*Candidate {
	return map[string]*Candidate{
		"codex": {
			ID:      "codex",
			Label:   "Codex (ACP)",
			Command: "codex-acp",
		},
		"qwen": {
			ID:      "qwen",
			Label:   "Qwen Code",
			Command: "qwen",
			Args:    []string{"--experimental-acp"},
		},
		"mistral": {
			ID:      "mistral",
			Label:   "Mistral Vibe",
			Command: "vibe-acp",
		},
	}
}

// NewRegistry creates a registry with the built-in candidates.
func NewRegistry() *Registry {
	return &Registry{candidates: builtIns(), defaultID: DefaultID}
}

// SetDefault changes the candidate the "default" alias and empty ids resolve
// to. An empty id keeps the current default.
func (r *Registry) SetDefault(id string) {
	if id == "" {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.defaultID = id
}

// Default returns the id the "default" alias resolves to.
func (r *Registry) Default() string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.defaultID
}

// LoadOverrides merges candidates from a YAML file into the registry.
// A missing file is not an error.
func (r *Registry) LoadOverrides(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("agent: read overrides: %w", err)
	}

	var file struct {
		Agents []Candidate `yaml:"agents"`
	}
	if err := yaml.Unmarshal(data, &file); err != nil {
		return fmt.Errorf("agent: parse overrides: %w", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range file.Agents {
		c := file.Agents[i]
		if c.ID == "" {
			continue
		}
		r.candidates[c.ID] = &c
	}
	return nil
}

// Get retrieves a candidate by id, falling back to the default candidate for
// the "default" alias or an empty id.
func (r *Registry) Get(id string) (*Candidate, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if id == "" || id == "default" {
		id = r.defaultID
	}
	c, ok := r.candidates[id]
	if !ok {
		return nil, fmt.Errorf("agent: unknown candidate %q", id)
	}
	cp := *c
	return &cp, nil
}

// Resolve returns a candidate whose command is installed and launchable.
func (r *Registry) Resolve(id string) (*Candidate, error) {
	c, err := r.Get(id)
	if err != nil {
		return nil, err
	}
	if !c.Available() {
		return nil, fmt.Errorf("agent %q is not available: %q not found on PATH", c.ID, c.Command)
	}
	return c, nil
}

// Register adds or replaces a candidate.
func (r *Registry) Register(c *Candidate) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.candidates[c.ID] = c
}

// List returns all candidates sorted by id.
func (r *Registry) List() []*Candidate {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*Candidate, 0, len(r.candidates))
	for _, c := range r.candidates {
		cp := *c
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
