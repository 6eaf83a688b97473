// Package id provides short random identifiers for tasks and output files.
package id

import (
	"strings"

	"github.com/google/uuid"
)

// Length is the number of hex characters in a generated identifier.
const Length = 8

// Generate creates a new random identifier of Length lowercase hex characters.
// Example: a1b2c3d4
func Generate() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:Length]
}
