package passphrase

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"rentalchain/crypto"
)

func noPrompt(t *testing.T) func(string) (string, error) {
	return func(label string) (string, error) {
		t.Fatalf("unexpected prompt for %s", label)
		return "", nil
	}
}

func TestSourceReadsEnvironment(t *testing.T) {
	t.Setenv("RENTALS_TEST_PASS", "hunter2")
	src := NewSource("RENTALS_TEST_PASS", "owner keystore")
	src.prompt = noPrompt(t)
	got, err := src.Get()
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got != "hunter2" {
		t.Fatalf("expected env passphrase, got %q", got)
	}
	t.Setenv("RENTALS_TEST_PASS", "changed")
	if again, _ := src.Get(); again != "hunter2" {
		t.Fatalf("expected cached passphrase, got %q", again)
	}
}

func TestSourceReadsPassphraseFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pass")
	if err := os.WriteFile(path, []byte("from-file\n"), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	t.Setenv("RENTALS_TEST_PASS"+FileSuffix, path)
	src := NewSource("RENTALS_TEST_PASS", "")
	src.prompt = noPrompt(t)
	if !src.Configured() {
		t.Fatalf("expected file variable to count as configured")
	}
	got, err := src.Get()
	if err != nil || got != "from-file" {
		t.Fatalf("expected file passphrase, got %q (%v)", got, err)
	}
}

func TestSourceRejectsBlankValues(t *testing.T) {
	t.Setenv("RENTALS_TEST_PASS", "   ")
	if _, err := NewSource("RENTALS_TEST_PASS", "").Get(); err == nil {
		t.Fatalf("expected blank passphrase to be rejected")
	}

	src := NewSource("", "signing keystore")
	src.prompt = func(string) (string, error) { return "", nil }
	if _, err := src.Get(); err == nil {
		t.Fatalf("expected blank prompt to be rejected")
	}
}

func TestSourceWithoutTerminalNamesVariables(t *testing.T) {
	src := NewSource("RENTALS_UNSET_PASS", "owner keystore")
	src.lookup = func(string) (string, bool) { return "", false }
	src.prompt = func(label string) (string, error) { return "", fmt.Errorf("%s: %w", label, errNoTerminal) }
	_, err := src.Get()
	if err == nil {
		t.Fatalf("expected an error without a terminal")
	}
	if want := "RENTALS_UNSET_PASS_FILE"; !strings.Contains(err.Error(), want) {
		t.Fatalf("error %q should mention %s", err, want)
	}
}

func TestUnlockOpensDevelopmentKeystore(t *testing.T) {
	path := filepath.Join(t.TempDir(), "owner.keystore")
	key, err := crypto.GeneratePrivateKey()
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if err := crypto.SaveToKeystore(path, key, "", true); err != nil {
		t.Fatalf("save: %v", err)
	}
	src := NewSource("RENTALS_UNSET_PASS", "owner keystore")
	src.lookup = func(string) (string, bool) { return "", false }
	src.prompt = noPrompt(t)
	opened, err := Unlock(path, src)
	if err != nil {
		t.Fatalf("unlock: %v", err)
	}
	if opened.Address() != key.Address() {
		t.Fatalf("unlocked the wrong key")
	}
}

func TestUnlockUsesConfiguredPassphrase(t *testing.T) {
	path := filepath.Join(t.TempDir(), "signer.keystore")
	key, err := crypto.GeneratePrivateKey()
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if err := crypto.SaveToKeystore(path, key, "s3cret", true); err != nil {
		t.Fatalf("save: %v", err)
	}
	t.Setenv("RENTALS_TEST_PASS", "wrong")
	if _, err := Unlock(path, NewSource("RENTALS_TEST_PASS", "signer")); err == nil {
		t.Fatalf("expected wrong passphrase to fail")
	}
	t.Setenv("RENTALS_TEST_PASS", "s3cret")
	if _, err := Unlock(path, NewSource("RENTALS_TEST_PASS", "signer")); err != nil {
		t.Fatalf("unlock: %v", err)
	}
}
