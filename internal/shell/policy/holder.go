// Package policy loads the reservation policy from a YAML file and keeps the
// current version available to request handlers, reloading it when the file
// changes.
package policy

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync/atomic"

	"github.com/artpar/sitehost/internal/core/naming"
	"github.com/fsnotify/fsnotify"
	"gopkg.in/yaml.v3"
)

// =============================================================================
// Policy File
// =============================================================================

// ErrInvalidPolicy is returned when a policy file parses but its rules are unusable.
var ErrInvalidPolicy = errors.New("invalid reservation policy")

// File is the on-disk shape of a reservation policy.
//
//	version: "2026-03-01"
//	min_length: 3
//	max_length: 30
//	reserved: [www, admin, api]
type File struct {
	Version   string   `yaml:"version"`
	MinLength int      `yaml:"min_length"`
	MaxLength int      `yaml:"max_length"`
	Reserved  []string `yaml:"reserved"`
}

// Parse decodes a policy document. Unknown fields are rejected so a typo in
// a key does not silently fall back to defaults.
func Parse(data []byte) (*naming.Policy, error) {
	var f File
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil {
		return nil, fmt.Errorf("failed to parse policy: %w", err)
	}

	rules := naming.DefaultRules()
	if f.MinLength != 0 {
		rules.MinLength = f.MinLength
	}
	if f.MaxLength != 0 {
		rules.MaxLength = f.MaxLength
	}
	if !rules.Valid() {
		return nil, fmt.Errorf("%w: min_length %d, max_length %d", ErrInvalidPolicy, rules.MinLength, rules.MaxLength)
	}

	version := f.Version
	if version == "" {
		version = "unversioned"
	}
	return naming.NewPolicy(version, rules, f.Reserved), nil
}

// Load reads and parses a policy file.
func Load(path string) (*naming.Policy, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read policy file: %w", err)
	}
	return Parse(data)
}

// =============================================================================
// Holder
// =============================================================================

// Holder keeps the policy in force. It is safe for concurrent use and
// implements naming.Source.
type Holder struct {
	current atomic.Pointer[naming.Policy]
	logger  *slog.Logger
}

// NewHolder creates a holder serving initial.
func NewHolder(initial *naming.Policy, logger *slog.Logger) *Holder {
	if initial == nil {
		initial = naming.DefaultPolicy()
	}
	if logger == nil {
		logger = slog.Default()
	}
	h := &Holder{logger: logger}
	h.current.Store(initial)
	return h
}

// Current returns the policy in force.
func (h *Holder) Current() *naming.Policy {
	return h.current.Load()
}

// Reload replaces the policy with the contents of path. On error the
// previous policy stays in force.
func (h *Holder) Reload(path string) error {
	p, err := Load(path)
	if err != nil {
		h.logger.Warn("policy reload failed, keeping previous policy",
			"path", path,
			"version", h.Current().Version(),
			"error", err,
		)
		return err
	}
	old := h.current.Swap(p)
	h.logger.Info("reservation policy loaded",
		"path", path,
		"version", p.Version(),
		"previous_version", old.Version(),
		"reserved", len(p.Reserved()),
	)
	return nil
}

// Watch reloads the policy whenever path changes, until ctx is done.
// The parent directory is watched because editors and config management
// usually replace the file rather than write it in place. A file renamed
// onto path arrives as a Create; a Rename event means path itself moved
// away and is ignored, keeping the policy in force.
func (h *Holder) Watch(ctx context.Context, path string) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create policy watcher: %w", err)
	}
	defer watcher.Close()

	target := filepath.Clean(path)
	if err := watcher.Add(filepath.Dir(target)); err != nil {
		return fmt.Errorf("failed to watch policy directory: %w", err)
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != target {
				continue
			}
			if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) {
				_ = h.Reload(target)
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			h.logger.Warn("policy watcher error", "error", err)
		}
	}
}
