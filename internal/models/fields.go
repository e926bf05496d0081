package models

import (
	"fmt"
	"sort"
)

// SyncField identifies one employee field the directory sync is allowed to
// write. The set of fields is closed: override protection and the merge logic
// both range over SyncFields, so a new syncable field added here is
// protectable by construction.
type SyncField string

const (
	FieldGivenName   SyncField = "given_name"
	FieldFamilyName  SyncField = "family_name"
	FieldDisplayName SyncField = "display_name"
	FieldAvatarURL   SyncField = "avatar_url"
	FieldPhone       SyncField = "phone"
	FieldLocation    SyncField = "location"
)

// SyncFields lists every syncable field in a stable order.
var SyncFields = []SyncField{
	FieldGivenName,
	FieldFamilyName,
	FieldDisplayName,
	FieldAvatarURL,
	FieldPhone,
	FieldLocation,
}

// FieldSet is a set of syncable field identifiers, used to record which
// employee fields carry administrator-entered values that sync must not
// overwrite.
type FieldSet map[SyncField]struct{}

// NewFieldSet builds a set from the given fields.
func NewFieldSet(fields ...SyncField) FieldSet {
	set := make(FieldSet, len(fields))
	for _, f := range fields {
		set[f] = struct{}{}
	}
	return set
}

// ParseFieldSet converts stored field names into a FieldSet.
// Unknown field names are rejected.
func ParseFieldSet(names []string) (FieldSet, error) {
	set := make(FieldSet, len(names))
	for _, name := range names {
		field := SyncField(name)
		if !field.Valid() {
			return nil, fmt.Errorf("unknown sync field %q", name)
		}
		set[field] = struct{}{}
	}
	return set, nil
}

// Valid reports whether the field is part of the closed enumeration.
func (f SyncField) Valid() bool {
	for _, known := range SyncFields {
		if f == known {
			return true
		}
	}
	return false
}

// Has reports whether the field is in the set.
func (s FieldSet) Has(f SyncField) bool {
	_, ok := s[f]
	return ok
}

// Add inserts the field into the set.
func (s FieldSet) Add(f SyncField) {
	s[f] = struct{}{}
}

// Remove deletes the field from the set.
func (s FieldSet) Remove(f SyncField) {
	delete(s, f)
}

// Clone returns a copy of the set.
func (s FieldSet) Clone() FieldSet {
	clone := make(FieldSet, len(s))
	for f := range s {
		clone[f] = struct{}{}
	}
	return clone
}

// Slice returns the field names sorted, for stable storage and logging.
func (s FieldSet) Slice() []string {
	names := make([]string, 0, len(s))
	for f := range s {
		names = append(names, string(f))
	}
	sort.Strings(names)
	return names
}
