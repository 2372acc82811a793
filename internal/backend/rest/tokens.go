package rest

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
)

// TokenFile persists the session token between CLI invocations.
type TokenFile struct {
	path string
}

func NewTokenFile(path string) *TokenFile {
	return &TokenFile{path: path}
}

// Load returns an empty token when the file does not exist.
func (f *TokenFile) Load() (string, error) {
	raw, err := os.ReadFile(f.path)
	if err != nil {
		if os.IsNotExist(err) {
			return "", nil
		}
		return "", errors.Wrap(err, "read token file")
	}
	return strings.TrimSpace(string(raw)), nil
}

func (f *TokenFile) Save(token string) error {
	if err := os.MkdirAll(filepath.Dir(f.path), 0o700); err != nil {
		return errors.Wrap(err, "create token dir")
	}
	if err := os.WriteFile(f.path, []byte(token+"\n"), 0o600); err != nil {
		return errors.Wrap(err, "write token file")
	}
	return nil
}

func (f *TokenFile) Clear() error {
	if err := os.Remove(f.path); err != nil && !os.IsNotExist(err) {
		return errors.Wrap(err, "remove token file")
	}
	return nil
}
