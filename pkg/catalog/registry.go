// Copyright (c) 2025 AccelByte Inc. All Rights Reserved.
// This is licensed software from AccelByte Inc, for limitations
// and restrictions contact your company contract manager.

package catalog

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

// Registry is an in-memory rule catalog.
// It provides thread-safe registration and lookup of rules.
type Registry struct {
	rules map[string]*Rule
	mu    sync.RWMutex
}

// NewRegistry creates a new empty rule registry.
func NewRegistry() *Registry {
	return &Registry{
		rules: make(map[string]*Rule),
	}
}

// Register adds a rule to the registry.
// Returns an error if the rule is invalid or a rule with the same ID already exists.
func (r *Registry) Register(rule Rule) error {
	if err := rule.Validate(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.rules[rule.ID]; exists {
		return fmt.Errorf("rule %s already registered", rule.ID)
	}

	r.rules[rule.ID] = &rule
	return nil
}

// Replace swaps the whole catalog atomically. Used by hot reload.
func (r *Registry) Replace(rules []Rule) error {
	next := make(map[string]*Rule, len(rules))
	for i := range rules {
		rule := rules[i]
		if err := rule.Validate(); err != nil {
			return err
		}
		if _, exists := next[rule.ID]; exists {
			return fmt.Errorf("duplicate rule ID: %s", rule.ID)
		}
		next[rule.ID] = &rule
	}

	r.mu.Lock()
	r.rules = next
	r.mu.Unlock()
	return nil
}

// Get returns a rule by ID, or nil if it doesn't exist.
func (r *Registry) Get(ruleID string) *Rule {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return r.rules[ruleID]
}

// GetAll returns all registered rules ordered by ID.
func (r *Registry) GetAll() []Rule {
	r.mu.RLock()
	defer r.mu.RUnlock()

	rules := make([]Rule, 0, len(r.rules))
	for _, rule := range r.rules {
		rules = append(rules, *rule)
	}
	sort.Slice(rules, func(i, j int) bool { return rules[i].ID < rules[j].ID })

	return rules
}

// Count returns the number of registered rules.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.rules)
}

// Ping reports ErrEmptyCatalog when no rule is registered.
func (r *Registry) Ping(_ context.Context) error {
	if r.Count() == 0 {
		return ErrEmptyCatalog
	}
	return nil
}

// FindByID implements Repository.
func (r *Registry) FindByID(_ context.Context, ruleID string) (*Rule, error) {
	rule := r.Get(ruleID)
	if rule == nil {
		return nil, fmt.Errorf("%w: %s", ErrRuleNotFound, ruleID)
	}
	return rule, nil
}

// FindByIDAndLevel implements Repository.
func (r *Registry) FindByIDAndLevel(ctx context.Context, ruleID string, level int) (*Rule, *DifficultyLevel, error) {
	rule, err := r.FindByID(ctx, ruleID)
	if err != nil {
		return nil, nil, err
	}

	lvl, ok := rule.Level(level)
	if !ok {
		return rule, nil, fmt.Errorf("%w: rule %s level %d", ErrLevelNotFound, ruleID, level)
	}
	return rule, lvl, nil
}
