package version

import "testing"

func TestString(t *testing.T) {
	got := String()
	if got != "dev (unknown) built unknown" {
		t.Errorf("String() = %q", got)
	}
}

func TestUserAgent(t *testing.T) {
	if got := UserAgent(); got != "polymarket-realtime/dev" {
		t.Errorf("UserAgent() = %q, want polymarket-realtime/dev", got)
	}

	oldVersion, oldCommit := Version, Commit
	t.Cleanup(func() { Version, Commit = oldVersion, oldCommit })

	Version, Commit = "1.2.0", "abc1234"
	if got := UserAgent(); got != "polymarket-realtime/1.2.0 (abc1234)" {
		t.Errorf("UserAgent() = %q", got)
	}
}
