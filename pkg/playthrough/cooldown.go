// Copyright (c) 2025 AccelByte Inc. All Rights Reserved.
// This is licensed software from AccelByte Inc, for limitations
// and restrictions contact your company contract manager.

package playthrough

import "encoding/json"

// CooldownCapacity is the number of distinct recently picked rules kept in the FIFO.
const CooldownCapacity = 5

// CooldownFIFO is a bounded, deduplicated FIFO of recently picked rule IDs,
// oldest first. The zero value is an empty FIFO ready to use.
type CooldownFIFO struct {
	ids    []string
	member map[string]struct{}
}

// NewCooldownFIFO builds a FIFO by pushing ids in order.
func NewCooldownFIFO(ids ...string) CooldownFIFO {
	var f CooldownFIFO
	for _, id := range ids {
		f.Push(id)
	}
	return f
}

// Push records ruleID as the most recent pick. An ID already present moves
// to the most recent slot; the oldest ID is evicted beyond capacity.
func (f *CooldownFIFO) Push(ruleID string) {
	if f.member == nil {
		f.member = make(map[string]struct{}, CooldownCapacity)
	}

	if _, ok := f.member[ruleID]; ok {
		for i, id := range f.ids {
			if id == ruleID {
				f.ids = append(f.ids[:i], f.ids[i+1:]...)
				break
			}
		}
	}

	f.ids = append(f.ids, ruleID)
	f.member[ruleID] = struct{}{}

	for len(f.ids) > CooldownCapacity {
		delete(f.member, f.ids[0])
		f.ids = f.ids[1:]
	}
}

// Contains reports whether ruleID is in the FIFO.
func (f *CooldownFIFO) Contains(ruleID string) bool {
	_, ok := f.member[ruleID]
	return ok
}

// ContainsAll reports whether every id is in the FIFO. An empty list is never contained.
func (f *CooldownFIFO) ContainsAll(ids []string) bool {
	if len(ids) == 0 {
		return false
	}
	for _, id := range ids {
		if !f.Contains(id) {
			return false
		}
	}
	return true
}

// PicksUntilRelease returns how many more distinct picks of other rules are
// needed before ruleID rotates out. Zero means ruleID is not in the FIFO.
func (f *CooldownFIFO) PicksUntilRelease(ruleID string) int {
	for i, id := range f.ids {
		if id == ruleID {
			return CooldownCapacity - len(f.ids) + i + 1
		}
	}
	return 0
}

// Len returns the number of IDs held.
func (f *CooldownFIFO) Len() int {
	return len(f.ids)
}

// IDs returns a copy of the IDs, oldest first.
func (f *CooldownFIFO) IDs() []string {
	out := make([]string, len(f.ids))
	copy(out, f.ids)
	return out
}

// Clear empties the FIFO.
func (f *CooldownFIFO) Clear() {
	f.ids = nil
	f.member = nil
}

// MarshalJSON encodes the FIFO as an array, oldest first.
func (f CooldownFIFO) MarshalJSON() ([]byte, error) {
	if f.ids == nil {
		return []byte("[]"), nil
	}
	return json.Marshal(f.ids)
}

// UnmarshalJSON decodes an array of IDs, re-applying dedup and capacity.
func (f *CooldownFIFO) UnmarshalJSON(data []byte) error {
	var ids []string
	if err := json.Unmarshal(data, &ids); err != nil {
		return err
	}
	*f = NewCooldownFIFO(ids...)
	return nil
}
