package cfb

import (
	"errors"
	"os"
	"sync"
)

// tempFiles holds every temporary file created and not yet removed.
var tempFiles = struct {
	sync.Mutex
	paths map[string]struct{}
}{paths: make(map[string]struct{})}

func registerTemp(path string) {
	tempFiles.Lock()
	tempFiles.paths[path] = struct{}{}
	tempFiles.Unlock()
}

func unregisterTemp(path string) {
	tempFiles.Lock()
	delete(tempFiles.paths, path)
	tempFiles.Unlock()
}

// withTempFile creates a temporary file, hands it to fn and removes it on
// every exit path. A file fn renamed away counts as removed. A file that
// cannot be removed stays registered for CleanupTempFiles.
func withTempFile(dir, pattern string, fn func(tf *os.File) error) error {
	tf, err := os.CreateTemp(dir, pattern)
	if err != nil {
		return err
	}
	name := tf.Name()
	registerTemp(name)
	defer func() {
		tf.Close()
		if err := os.Remove(name); err == nil || errors.Is(err, os.ErrNotExist) {
			unregisterTemp(name)
		}
	}()
	return fn(tf)
}

// PendingTempFiles returns the temporary files still registered.
func PendingTempFiles() []string {
	tempFiles.Lock()
	defer tempFiles.Unlock()
	out := make([]string, 0, len(tempFiles.paths))
	for p := range tempFiles.paths {
		out = append(out, p)
	}
	return out
}

// CleanupTempFiles removes every registered temporary file. Call it on
// process exit and from signal handlers.
func CleanupTempFiles() error {
	tempFiles.Lock()
	defer tempFiles.Unlock()
	var errs []error
	for p := range tempFiles.paths {
		if err := os.Remove(p); err != nil && !errors.Is(err, os.ErrNotExist) {
			errs = append(errs, err)
			continue
		}
		delete(tempFiles.paths, p)
	}
	return errors.Join(errs...)
}
