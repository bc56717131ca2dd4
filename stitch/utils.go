package stitch

import (
	"fmt"
	"path/filepath"
	"time"
)

// Duration is a time.Duration that decodes from strings like "10s" in TOML.
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalText(text []byte) error {
	var err error
	d.Duration, err = time.ParseDuration(string(text))
	return err
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// ConvertToAbsolute converts the given path to an absolute path, assuming
// relative paths are relative to the given directory.
func ConvertToAbsolute(path string, relativeTo string) (string, error) {
	if path == "" || filepath.IsAbs(path) || HasScheme(path) {
		return path, nil
	}
	absPath, err := filepath.Abs(filepath.Join(relativeTo, path))
	if err != nil {
		return "", fmt.Errorf("could not make %q absolute: %v", path, err)
	}
	return absPath, nil
}

// HasScheme returns true if the path is a URL like "gs://bucket/key".
func HasScheme(path string) bool {
	for i := 0; i < len(path); i++ {
		c := path[i]
		switch {
		case c == ':':
			return i > 0 && len(path) > i+2 && path[i+1] == '/' && path[i+2] == '/'
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9', c == '+', c == '-', c == '.':
		default:
			return false
		}
	}
	return false
}
