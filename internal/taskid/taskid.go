// Package taskid validates and generates the task identifier shape used
// as the primary key throughout taskgraph: a 36-character version-4
// UUID-like string (8-4-4-4-12 hex, with a literal "4" in the version
// nibble and one of 8|9|a|b in the variant nibble).
package taskid

import (
	"regexp"

	"github.com/google/uuid"

	"github.com/jra3/taskgraph/internal/apperr"
)

var shapeRE = regexp.MustCompile(`^[0-9a-f]{8}-[0-9a-f]{4}-4[0-9a-f]{3}-[89ab][0-9a-f]{3}-[0-9a-f]{12}$`)

// Valid reports whether s has the version-4 UUID shape required by the
// data model (spec §3).
func Valid(s string) bool {
	return shapeRE.MatchString(s)
}

// Validate returns a typed error if s is not a well-formed task id.
func Validate(s string) error {
	if !Valid(s) {
		return apperr.New(apperr.CodeInvalidTaskID, "task id is not a version-4 UUID: "+s)
	}
	return nil
}

// New generates a fresh, valid task id.
func New() string {
	return uuid.New().String()
}
