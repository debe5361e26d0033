package gamedata

import (
	"fmt"
	"strings"
)

// MalformedError reports a document or row with the wrong shape.
// Field is a path such as "items[3].addresses.na"; it is empty when the
// problem concerns the whole file.
type MalformedError struct {
	File   string
	Field  string
	Reason string
}

func (e *MalformedError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("gamedata: %s: %s", e.File, e.Reason)
	}
	return fmt.Sprintf("gamedata: %s: %s %s", e.File, e.Field, e.Reason)
}

// DuplicateError reports a key or name that appears twice in one document.
type DuplicateError struct {
	File  string
	List  string
	Field string // "key" or "name"
	Value string
	First int
	Index int
}

func (e *DuplicateError) Error() string {
	return fmt.Sprintf("gamedata: %s: duplicate %s %q in %s[%d] (first seen at %s[%d])",
		e.File, e.Field, e.Value, e.List, e.Index, e.List, e.First)
}

// DocumentVersion pairs a document with the schema version it declared.
type DocumentVersion struct {
	Document string
	Version  int
}

// SchemaMismatchError reports documents that declared different
// schema_version values.
type SchemaMismatchError struct {
	Versions []DocumentVersion
}

func (e *SchemaMismatchError) Error() string {
	parts := make([]string, len(e.Versions))
	for i, v := range e.Versions {
		parts[i] = fmt.Sprintf("%s=%d", v.Document, v.Version)
	}
	return "gamedata: schema version mismatch across data files: " + strings.Join(parts, ", ")
}
