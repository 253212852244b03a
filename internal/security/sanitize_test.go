package security

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSanitizeFilename(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		in   string
		want string
	}{
		{"plain", "run42", "run42"},
		{"keeps separators", "run-42_v1.2", "run-42_v1.2"},
		{"replaces spaces", "morning session", "morning_session"},
		{"collapses runs", "a   b///c", "a_b_c"},
		{"defangs traversal", "../../etc/passwd", ".._.._etc_passwd"},
		{"empty", "", "unknown"},
		{"all invalid", "///", "unknown"},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tc.want, SanitizeFilename(tc.in))
		})
	}
}

func TestSanitizeFilenameCapsLength(t *testing.T) {
	t.Parallel()

	out := SanitizeFilename(strings.Repeat("a", 500))
	assert.LessOrEqual(t, len(out), 128)
}
