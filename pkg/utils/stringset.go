// Copyright (C) 2025 Petr Malik
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at <https://mozilla.org/MPL/2.0/>.

// Package utils provides small generic helpers shared across the MindGauge packages.
package utils

import (
	"encoding/json"
	"errors"
	"fmt"

	"slices"

	"gopkg.in/yaml.v3"
)

// ErrInvalidStringSetValue indicates invalid StringSet definition.
var ErrInvalidStringSetValue = errors.New("invalid string-set value")

// StringSet represents a set of unique string values preserving insertion order.
type StringSet struct {
	values []string
}

// NewStringSet creates a new StringSet from the given items, discarding duplicates.
func NewStringSet(items ...string) StringSet {
	set := make(map[string]struct{}, len(items))
	unique := make([]string, 0, len(items))
	for _, v := range items {
		if _, exists := set[v]; !exists {
			unique = append(unique, v)
			set[v] = struct{}{}
		}
	}
	return StringSet{values: unique}
}

// Values returns a copy of the set's values in insertion order.
func (s StringSet) Values() []string {
	return slices.Clone(s.values)
}

// Len returns the number of values in the set.
func (s StringSet) Len() int {
	return len(s.values)
}

// Contains returns true if the set contains the given value.
func (s StringSet) Contains(value string) bool {
	return slices.Contains(s.values, value)
}

// Any returns true if any value in the set satisfies the given condition.
func (s StringSet) Any(condition func(string) bool) bool {
	return slices.ContainsFunc(s.values, condition)
}

// Add returns a new StringSet with the given items appended, discarding duplicates.
func (s StringSet) Add(items ...string) StringSet {
	return NewStringSet(append(s.Values(), items...)...)
}

// Map returns a new StringSet with f applied to each value, discarding duplicates.
func (s StringSet) Map(f func(string) string) StringSet {
	mapped := make([]string, len(s.values))
	for i, v := range s.values {
		mapped[i] = f(v)
	}
	return NewStringSet(mapped...)
}

// UnmarshalYAML allows StringSet to be loaded from either a string or a list of strings.
func (s *StringSet) UnmarshalYAML(value *yaml.Node) error {
	var items []string
	switch value.Kind {
	case yaml.ScalarNode:
		var single string
		if err := value.Decode(&single); err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidStringSetValue, err)
		}
		items = append(items, single)
	case yaml.SequenceNode:
		var list []string
		if err := value.Decode(&list); err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidStringSetValue, err)
		}
		items = list
	default:
		return fmt.Errorf("%w: must be a string or list of strings", ErrInvalidStringSetValue)
	}
	*s = NewStringSet(items...)
	return nil
}

// MarshalYAML marshals the StringSet as a list of strings.
func (s StringSet) MarshalYAML() (interface{}, error) {
	return s.Values(), nil
}

// MarshalJSON marshals the StringSet as a JSON array of strings.
func (s StringSet) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.Values())
}

// UnmarshalJSON loads the StringSet from a JSON array of strings, discarding duplicates.
func (s *StringSet) UnmarshalJSON(data []byte) error {
	var items []string
	if err := json.Unmarshal(data, &items); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidStringSetValue, err)
	}
	*s = NewStringSet(items...)
	return nil
}

// SortedKeys returns the keys of the given map in ascending order.
func SortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}
