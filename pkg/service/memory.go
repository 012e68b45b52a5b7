// Copyright (c) 2025 AccelByte Inc. All Rights Reserved.
// This is licensed software from AccelByte Inc, for limitations
// and restrictions contact your company contract manager.

package service

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"

	"github.com/AccelByte/extend-playthrough-rules/pkg/playthrough"
)

// MemoryStore is an in-process implementation of all three repositories.
// Records are kept JSON-encoded so callers always receive independent copies,
// matching the Redis stores.
type MemoryStore struct {
	mu           sync.RWMutex
	playthroughs map[string][]byte
	instances    map[string]map[string][]byte
	queue        map[string]map[string][]byte
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		playthroughs: make(map[string][]byte),
		instances:    make(map[string]map[string][]byte),
		queue:        make(map[string]map[string][]byte),
	}
}

// Playthroughs returns the store as a PlaythroughRepository.
func (m *MemoryStore) Playthroughs() PlaythroughRepository { return memoryPlaythroughs{m} }

// Instances returns the store as a RuleInstanceRepository.
func (m *MemoryStore) Instances() RuleInstanceRepository { return memoryInstances{m} }

// Queue returns the store as a QueueRepository.
func (m *MemoryStore) Queue() QueueRepository { return memoryQueue{m} }

type memoryPlaythroughs struct{ m *MemoryStore }

func (s memoryPlaythroughs) Load(_ context.Context, id string) (*playthrough.Playthrough, error) {
	s.m.mu.RLock()
	raw, ok := s.m.playthroughs[id]
	s.m.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: playthrough %s", playthrough.ErrNotFound, id)
	}

	var p playthrough.Playthrough
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, fmt.Errorf("failed to unmarshal playthrough: %w", err)
	}
	return &p, nil
}

func (s memoryPlaythroughs) Save(_ context.Context, p *playthrough.Playthrough) error {
	raw, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("failed to marshal playthrough: %w", err)
	}
	s.m.mu.Lock()
	s.m.playthroughs[p.ID] = raw
	s.m.mu.Unlock()
	return nil
}

func (s memoryPlaythroughs) all() ([]*playthrough.Playthrough, error) {
	s.m.mu.RLock()
	defer s.m.mu.RUnlock()

	out := make([]*playthrough.Playthrough, 0, len(s.m.playthroughs))
	for _, raw := range s.m.playthroughs {
		var p playthrough.Playthrough
		if err := json.Unmarshal(raw, &p); err != nil {
			return nil, fmt.Errorf("failed to unmarshal playthrough: %w", err)
		}
		out = append(out, &p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s memoryPlaythroughs) FindCurrentByUser(_ context.Context, userID string) (*playthrough.Playthrough, error) {
	all, err := s.all()
	if err != nil {
		return nil, err
	}
	for _, p := range all {
		if p.UserID == userID && !p.IsCompleted() {
			return p, nil
		}
	}
	return nil, nil
}

func (s memoryPlaythroughs) ListActive(_ context.Context) ([]string, error) {
	all, err := s.all()
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(all))
	for _, p := range all {
		if !p.IsCompleted() {
			ids = append(ids, p.ID)
		}
	}
	return ids, nil
}

type memoryInstances struct{ m *MemoryStore }

func (s memoryInstances) FindAll(_ context.Context, playthroughID string) ([]*playthrough.RuleInstance, error) {
	s.m.mu.RLock()
	defer s.m.mu.RUnlock()

	bucket := s.m.instances[playthroughID]
	out := make([]*playthrough.RuleInstance, 0, len(bucket))
	for _, raw := range bucket {
		var inst playthrough.RuleInstance
		if err := json.Unmarshal(raw, &inst); err != nil {
			return nil, fmt.Errorf("failed to unmarshal rule instance: %w", err)
		}
		out = append(out, &inst)
	}
	sortInstances(out)
	return out, nil
}

func (s memoryInstances) FindActive(ctx context.Context, playthroughID string) ([]*playthrough.RuleInstance, error) {
	all, err := s.FindAll(ctx, playthroughID)
	if err != nil {
		return nil, err
	}
	return filterActive(all), nil
}

func (s memoryInstances) Get(_ context.Context, playthroughID, id string) (*playthrough.RuleInstance, error) {
	s.m.mu.RLock()
	raw, ok := s.m.instances[playthroughID][id]
	s.m.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: rule instance %s", playthrough.ErrNotFound, id)
	}

	var inst playthrough.RuleInstance
	if err := json.Unmarshal(raw, &inst); err != nil {
		return nil, fmt.Errorf("failed to unmarshal rule instance: %w", err)
	}
	return &inst, nil
}

func (s memoryInstances) Save(_ context.Context, instances ...*playthrough.RuleInstance) error {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()

	for _, inst := range instances {
		raw, err := json.Marshal(inst)
		if err != nil {
			return fmt.Errorf("failed to marshal rule instance: %w", err)
		}
		bucket, ok := s.m.instances[inst.PlaythroughID]
		if !ok {
			bucket = make(map[string][]byte)
			s.m.instances[inst.PlaythroughID] = bucket
		}
		bucket[inst.ID] = raw
	}
	return nil
}

type memoryQueue struct{ m *MemoryStore }

func (s memoryQueue) entries(playthroughID string) ([]*playthrough.QueueEntry, error) {
	s.m.mu.RLock()
	defer s.m.mu.RUnlock()

	bucket := s.m.queue[playthroughID]
	out := make([]*playthrough.QueueEntry, 0, len(bucket))
	for _, raw := range bucket {
		var entry playthrough.QueueEntry
		if err := json.Unmarshal(raw, &entry); err != nil {
			return nil, fmt.Errorf("failed to unmarshal queue entry: %w", err)
		}
		out = append(out, &entry)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Position < out[j].Position })
	return out, nil
}

func (s memoryQueue) NextPosition(_ context.Context, playthroughID string) (int, error) {
	entries, err := s.entries(playthroughID)
	if err != nil {
		return 0, err
	}
	max := 0
	for _, e := range entries {
		if !e.Status.IsTerminal() && e.Position > max {
			max = e.Position
		}
	}
	return max + 1, nil
}

func (s memoryQueue) Pending(_ context.Context, playthroughID string) ([]*playthrough.QueueEntry, error) {
	entries, err := s.entries(playthroughID)
	if err != nil {
		return nil, err
	}
	pending := entries[:0]
	for _, e := range entries {
		if e.IsPending() {
			pending = append(pending, e)
		}
	}
	return pending, nil
}

func (s memoryQueue) Get(_ context.Context, playthroughID, id string) (*playthrough.QueueEntry, error) {
	s.m.mu.RLock()
	raw, ok := s.m.queue[playthroughID][id]
	s.m.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: queue entry %s", playthrough.ErrNotFound, id)
	}

	var entry playthrough.QueueEntry
	if err := json.Unmarshal(raw, &entry); err != nil {
		return nil, fmt.Errorf("failed to unmarshal queue entry: %w", err)
	}
	return &entry, nil
}

func (s memoryQueue) Save(_ context.Context, entry *playthrough.QueueEntry) error {
	raw, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("failed to marshal queue entry: %w", err)
	}

	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	bucket, ok := s.m.queue[entry.PlaythroughID]
	if !ok {
		bucket = make(map[string][]byte)
		s.m.queue[entry.PlaythroughID] = bucket
	}
	bucket[entry.ID] = raw
	return nil
}
