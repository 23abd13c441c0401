package passphrase

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"

	"golang.org/x/term"

	"rentalchain/crypto"
)

// FileSuffix names the companion variable pointing at a file that holds the
// passphrase, e.g. RENTALS_OWNER_PASS_FILE.
const FileSuffix = "_FILE"

// Source resolves a keystore passphrase from $ENV, then the file named by
// $ENV_FILE, then an interactive prompt. The first outcome is cached.
type Source struct {
	envVar string
	label  string

	lookup   func(string) (string, bool)
	readFile func(string) ([]byte, error)
	prompt   func(label string) (string, error)

	once  sync.Once
	value string
	err   error
}

// NewSource returns a source for the keystore described by label.
func NewSource(envVar, label string) *Source {
	label = strings.TrimSpace(label)
	if label == "" {
		label = "keystore"
	}
	return &Source{
		envVar:   strings.TrimSpace(envVar),
		label:    label,
		lookup:   os.LookupEnv,
		readFile: os.ReadFile,
		prompt:   promptTerminal,
	}
}

// Configured reports whether the environment supplies a passphrase.
func (s *Source) Configured() bool {
	if s.envVar == "" {
		return false
	}
	if _, ok := s.lookup(s.envVar); ok {
		return true
	}
	_, ok := s.lookup(s.envVar + FileSuffix)
	return ok
}

// Get returns the passphrase. Blank values are rejected wherever they come
// from.
func (s *Source) Get() (string, error) {
	s.once.Do(func() {
		s.value, s.err = s.resolve()
		if s.err == nil && strings.TrimSpace(s.value) == "" {
			s.value, s.err = "", fmt.Errorf("%s passphrase cannot be empty", s.label)
		}
	})
	return s.value, s.err
}

func (s *Source) resolve() (string, error) {
	if s.envVar != "" {
		if value, ok := s.lookup(s.envVar); ok {
			return value, nil
		}
		if path, ok := s.lookup(s.envVar + FileSuffix); ok {
			raw, err := s.readFile(strings.TrimSpace(path))
			if err != nil {
				return "", fmt.Errorf("read %s%s: %w", s.envVar, FileSuffix, err)
			}
			return strings.TrimRight(string(raw), "\r\n"), nil
		}
	}
	value, err := s.prompt(s.label)
	if errors.Is(err, errNoTerminal) && s.envVar != "" {
		return "", fmt.Errorf("%s passphrase required; set %s or %s%s", s.label, s.envVar, s.envVar, FileSuffix)
	}
	return value, err
}

var errNoTerminal = errors.New("no terminal available")

func promptTerminal(label string) (string, error) {
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return "", fmt.Errorf("%s passphrase required: %w", label, errNoTerminal)
	}
	fmt.Fprintf(os.Stderr, "Enter %s passphrase: ", label)
	raw, err := term.ReadPassword(fd)
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", fmt.Errorf("read passphrase: %w", err)
	}
	return string(raw), nil
}

// Unlock decrypts the keystore at path. Development keystores written with
// an empty passphrase open without prompting when src is not configured.
func Unlock(path string, src *Source) (*crypto.PrivateKey, error) {
	if !src.Configured() {
		if key, err := crypto.LoadFromKeystore(path, ""); err == nil {
			return key, nil
		}
	}
	pass, err := src.Get()
	if err != nil {
		return nil, err
	}
	key, err := crypto.LoadFromKeystore(path, pass)
	if err != nil {
		return nil, fmt.Errorf("open %s %s: %w", src.label, path, err)
	}
	return key, nil
}
