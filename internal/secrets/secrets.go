// Package secrets resolves function access keys from mounted secret files or
// environment references, so keys need not be written into config files.
package secrets

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/australis-energy/leadgate/internal/errors"
)

const (
	componentName = "secrets"

	maxFileSize = 64 * 1024
)

// PermissiveFileError is returned alongside a successfully read key when the
// secret file is readable by group or others. Callers log it and continue.
type PermissiveFileError struct {
	Path string
	Mode os.FileMode
}

func (e *PermissiveFileError) Error() string {
	return fmt.Sprintf("secret file %s has group/other permissions (%04o)", e.Path, e.Mode)
}

// Expand replaces ${VAR} and ${VAR:-fallback} references with environment
// values. A reference without fallback to an unset variable is an error.
func Expand(s string) (string, error) {
	var missing []string
	out := os.Expand(s, func(key string) string {
		name, fallback, hasFallback := strings.Cut(key, ":-")
		if v := os.Getenv(name); v != "" {
			return v
		}
		if !hasFallback {
			missing = append(missing, name)
		}
		return fallback
	})
	if len(missing) > 0 {
		return "", errors.Newf("missing environment variable(s): %s", strings.Join(missing, ", ")).
			Component(componentName).
			Category(errors.CategoryConfiguration).
			Build()
	}
	return out, nil
}

// ReadFile reads a key from a Docker or Kubernetes secret file. Trailing
// newlines are dropped. A file readable by group or others is still read,
// with a *PermissiveFileError as the warning.
func ReadFile(path string) (string, error) {
	clean := filepath.Clean(path)
	info, err := os.Stat(clean)
	if err != nil {
		return "", fileError(err, clean)
	}
	if !info.Mode().IsRegular() {
		return "", fileError(fmt.Errorf("secret path is not a regular file: %s", clean), clean)
	}
	if info.Size() > maxFileSize {
		return "", fileError(fmt.Errorf("secret file exceeds %d bytes: %s", maxFileSize, clean), clean)
	}

	data, err := os.ReadFile(clean)
	if err != nil {
		return "", fileError(err, clean)
	}
	key := strings.TrimRight(string(data), "\r\n")
	if key == "" {
		return "", fileError(fmt.Errorf("secret file is empty: %s", clean), clean)
	}

	if perm := info.Mode().Perm(); perm&0o077 != 0 {
		return key, &PermissiveFileError{Path: clean, Mode: perm}
	}
	return key, nil
}

// Resolve returns the key from filePath when set, otherwise value with
// environment references expanded. The error may be a *PermissiveFileError
// paired with a valid key.
func Resolve(filePath, value string) (string, error) {
	if filePath != "" {
		return ReadFile(filePath)
	}
	if value == "" {
		return "", nil
	}
	return Expand(value)
}

func fileError(err error, path string) error {
	return errors.New(err).
		Component(componentName).
		Category(errors.CategoryFileIO).
		Context("path", path).
		Build()
}
