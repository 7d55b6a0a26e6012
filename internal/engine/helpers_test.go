package engine

import "os"

// removeAndBlock replaces path with an empty regular file, so creating a
// directory there fails.
func removeAndBlock(path string) error {
	if err := os.RemoveAll(path); err != nil {
		return err
	}
	return os.WriteFile(path, nil, 0o644)
}
