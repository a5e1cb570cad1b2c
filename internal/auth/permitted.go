// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Gatehouse Contributors

package auth

import "sort"

// PermittedFieldSet is an allow-list of profile attribute names a given
// operation may set. Sets are built once at service configuration time and
// are immutable afterwards; filtering silently drops non-permitted keys
// rather than rejecting the request.
type PermittedFieldSet struct {
	fields map[string]struct{}
}

// NewPermittedFieldSet builds a set from the given attribute names.
func NewPermittedFieldSet(names ...string) PermittedFieldSet {
	fields := make(map[string]struct{}, len(names))
	for _, name := range names {
		fields[name] = struct{}{}
	}
	return PermittedFieldSet{fields: fields}
}

// Allows reports whether the attribute name is in the set.
func (s PermittedFieldSet) Allows(name string) bool {
	_, ok := s.fields[name]
	return ok
}

// Filter returns a copy of attributes containing only permitted keys.
// The input map is never modified.
func (s PermittedFieldSet) Filter(attributes map[string]string) map[string]string {
	filtered := make(map[string]string, len(attributes))
	for key, value := range attributes {
		if s.Allows(key) {
			filtered[key] = value
		}
	}
	return filtered
}

// Names returns the permitted attribute names in sorted order.
func (s PermittedFieldSet) Names() []string {
	names := make([]string, 0, len(s.fields))
	for name := range s.fields {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
