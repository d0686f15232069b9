// ABOUTME: Tests for temp file naming
// ABOUTME: Verifies the {user}_{ordinal}_{name} convention and path traversal safety

package session

import (
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestInputPath(t *testing.T) {
	tests := []struct {
		name     string
		userID   string
		ordinal  int
		original string
		want     string
	}{
		{"plain", "12345", 1, "report.pdf", "12345_1_report.pdf"},
		{"spaces", "12345", 2, "my report.PDF", "12345_2_my_report.PDF"},
		{"traversal", "12345", 3, "../../etc/passwd.pdf", "12345_3_passwd.pdf"},
		{"windows path", "12345", 4, `C:\Users\me\scan.pdf`, "12345_4_scan.pdf"},
		{"matrix user", "@alice:example.org", 1, "a.pdf", "_alice_example.org~86f01aef_1_a.pdf"},
		{"empty name", "7", 1, "", "7_1_file"},
		{"dots only", "7", 1, "..", "7_1___x"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := InputPath("/tmp/pdf", tt.userID, tt.ordinal, tt.original)
			assert.Equal(t, filepath.Join("/tmp/pdf", tt.want), got)
			assert.Equal(t, "/tmp/pdf", filepath.Dir(got), "path must stay inside the temp dir")
		})
	}
}

func TestInputPath_DistinctAcrossUsersAndOrdinals(t *testing.T) {
	seen := map[string]bool{}
	for _, user := range []string{"1", "2", "11"} {
		for ord := 1; ord <= 12; ord++ {
			p := InputPath("/tmp", user, ord, "same.pdf")
			assert.False(t, seen[p], "collision on %s", p)
			seen[p] = true
		}
	}
}

func TestInputPath_BoundsLongNames(t *testing.T) {
	long := strings.Repeat("a", 300) + ".pdf"
	got := filepath.Base(InputPath("/tmp", "1", 1, long))
	assert.True(t, strings.HasSuffix(got, ".pdf"))
	assert.LessOrEqual(t, len(got), len("1_1_")+maxNameLen)
}

func TestInputPath_UsersThatSanitiseAlike(t *testing.T) {
	a := InputPath("/tmp", "@a=b:hs", 1, "x.pdf")
	b := InputPath("/tmp", "@a/b:hs", 1, "x.pdf")

	assert.NotEqual(t, a, b)
	assert.Equal(t, filepath.Join("/tmp", "_a_b_hs~e2b1b997_1_x.pdf"), a)
	assert.Equal(t, filepath.Join("/tmp", "_a_b_hs~7d391942_1_x.pdf"), b)
}

func TestInputPath_UnderscoreCannotForgeOrdinal(t *testing.T) {
	// "a_1" ordinal 2 would otherwise read the same as "a" ordinal 1 with name "2_x.pdf"
	assert.NotEqual(t,
		InputPath("/tmp", "a_1", 2, "x.pdf"),
		InputPath("/tmp", "a", 1, "2_x.pdf"),
	)
}

func TestUserComponent(t *testing.T) {
	tests := []struct {
		userID string
		plain  bool
	}{
		{"42", true},
		{"-100123", true},
		{"a.b", true},
		{"a_1", false},
		{"a~1", false},
		{"..", false},
		{"", false},
		{"@bob:hs", false},
	}
	for _, tt := range tests {
		got := userComponent(tt.userID)
		if tt.plain {
			assert.Equal(t, tt.userID, got)
		} else {
			assert.NotEqual(t, tt.userID, got)
			assert.Contains(t, got, "~")
		}
		assert.NotContains(t, got, "/")
	}
}

func TestOutputPath(t *testing.T) {
	assert.Equal(t, filepath.Join("/tmp", "merged_42_s1.pdf"), OutputPath("/tmp", "42", "s1"))
	assert.Equal(t, filepath.Join("/tmp", "merged__bob_hs~9c87203d_s1.pdf"), OutputPath("/tmp", "@bob:hs", "s1"))
}

func TestOutputPath_DistinctPerSession(t *testing.T) {
	assert.NotEqual(t, OutputPath("/tmp", "42", "s1"), OutputPath("/tmp", "42", "s2"))
	assert.NotEqual(t, OutputPath("/tmp", "@a=b:hs", "s1"), OutputPath("/tmp", "@a/b:hs", "s1"))
}
