package platform

import (
	"path/filepath"
	"testing"
)

func TestSanitizeLockName(t *testing.T) {
	tests := []struct {
		name     string
		raw      string
		fallback string
		want     string
	}{
		{name: "preserves alnum and separators", raw: "relay-v1.2_3", fallback: "daemon", want: "relay-v1.2_3"},
		{name: "replaces unsupported runes", raw: "relay:/127", fallback: "daemon", want: "relay__127"},
		{name: "trims separator edges", raw: ".._relay-._", fallback: "daemon", want: "relay"},
		{name: "empty uses fallback", raw: "   ", fallback: "fallback", want: "fallback"},
		{name: "all unsupported uses fallback", raw: "[]{}", fallback: "fallback", want: "fallback"},
	}

	for _, tc := range tests {
		if got := sanitizeLockName(tc.raw, tc.fallback); got != tc.want {
			t.Fatalf("%s: expected %q, got %q", tc.name, tc.want, got)
		}
	}
}

func TestDaemonLockPath(t *testing.T) {
	dir := t.TempDir()
	if got, want := daemonLockPath(dir, "relay"), filepath.Join(dir, "relay.lock"); got != want {
		t.Fatalf("expected %q, got %q", want, got)
	}
}
