package version

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func withBuild(t *testing.T, v, c, d string) {
	t.Helper()
	prevV, prevC, prevD := version, commit, date
	version, commit, date = v, c, d
	t.Cleanup(func() { version, commit, date = prevV, prevC, prevD })
}

func TestCurrent_Defaults(t *testing.T) {
	b := Current()
	assert.NotEmpty(t, b.Version)
	assert.NotEmpty(t, b.Commit)
	assert.NotEmpty(t, b.Date)
	assert.Equal(t, b.Version, GetVersion())
}

func TestUserAgent(t *testing.T) {
	withBuild(t, "v1.4.0", "0123456789abcdef", "2026-01-02")

	assert.Equal(t, "loadtest/v1.4.0 (0123456)", UserAgent("loadtest"))
	assert.Equal(t, "storefront/v1.4.0 (0123456)", UserAgent(""))
}

func TestBuild_LogFieldsAndString(t *testing.T) {
	withBuild(t, "v2.0.0", "abc", "2026-03-04")

	b := Current()
	fields := b.LogFields()
	assert.Equal(t, "v2.0.0", fields["version"])
	assert.Equal(t, "abc", fields["commit"])
	assert.Equal(t, "2026-03-04", fields["built"])

	s := b.String()
	for _, part := range []string{"version=v2.0.0", "commit=abc", "date=2026-03-04"} {
		if !strings.Contains(s, part) {
			t.Errorf("String() = %q, want %q", s, part)
		}
	}
}
