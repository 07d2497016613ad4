package secrets

import (
	"errors"
	"fmt"
	"os"
	"strings"
)

// Static returns a Loader that always yields vals.
func Static(vals map[string]string) Loader {
	return func() (map[string]string, error) {
		out := make(map[string]string, len(vals))
		for k, v := range vals {
			out[k] = v
		}
		return out, nil
	}
}

// FileLoader reads key from a file holding only the secret, e.g. a mounted
// container secret. Surrounding whitespace is trimmed; an empty file is an
// error.
func FileLoader(key, path string) Loader {
	return func() (map[string]string, error) {
		data, err := os.ReadFile(path) //nolint:gosec // path comes from operator config
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", path, err)
		}
		v := strings.TrimSpace(string(data))
		if v == "" {
			return nil, errors.New(path + " is empty")
		}
		return map[string]string{key: v}, nil
	}
}

// Merge combines loaders; non-empty values from later loaders win.
func Merge(loaders ...Loader) Loader {
	return func() (map[string]string, error) {
		out := map[string]string{}
		for _, l := range loaders {
			vals, err := l()
			if err != nil {
				return nil, err
			}
			for k, v := range vals {
				if v != "" {
					out[k] = v
				}
			}
		}
		return out, nil
	}
}
