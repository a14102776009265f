package pipetest

import (
	"strings"
	"testing"

	"github.com/google/uuid"
)

// UniqueName returns a logical endpoint name no other test uses. It stays
// short enough for the unix socket path limit.
func UniqueName(t testing.TB) string {
	t.Helper()
	id := strings.ReplaceAll(uuid.NewString(), "-", "")
	return "pipetest-" + id[:16]
}
