package chainb

import (
	"os"
	"testing"
)

func TestRedactArgs_HidesViewingKey(t *testing.T) {
	args := []string{"query", "compute", "query", "secret1abc", `{"swap":{}}`, "--viewing-key", "supersecret"}
	redacted := redactArgs(args)

	if redacted[len(redacted)-1] != "<redacted>" {
		t.Fatalf("expected last arg redacted, got %q", redacted[len(redacted)-1])
	}
	for _, a := range redacted {
		if a == "supersecret" {
			t.Fatal("viewing key leaked into redacted args")
		}
	}
	if len(redacted) != len(args) {
		t.Fatalf("redaction changed arg count: %d vs %d", len(redacted), len(args))
	}
}

func TestRedactArgs_LeavesOtherArgsUntouched(t *testing.T) {
	args := []string{"tx", "broadcast", "/tmp/signed-tx-123"}
	redacted := redactArgs(args)
	for i, a := range args {
		if redacted[i] != a {
			t.Fatalf("expected arg %d unchanged, got %q want %q", i, redacted[i], a)
		}
	}
}

func TestTempFile_WritesContentsAndReturnsPath(t *testing.T) {
	c := New("secretcli", "secret1abc", "view-key", "signer", WithWorkDir(t.TempDir()))

	path, err := c.tempFile("unsigned-tx", `{"msg":"hello"}`)
	if err != nil {
		t.Fatalf("tempFile: %v", err)
	}
	if path == "" {
		t.Fatal("expected non-empty path")
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read temp file: %v", err)
	}
	if string(data) != `{"msg":"hello"}` {
		t.Fatalf("expected temp file contents %q, got %q", `{"msg":"hello"}`, string(data))
	}
}
