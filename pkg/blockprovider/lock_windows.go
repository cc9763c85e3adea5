//go:build windows

package blockprovider

import "os"

// advisoryLock is a no-op on platforms without unix.Flock; cross-process
// WAL directory protection is a unix-only safeguard (see lock_unix.go).
type advisoryLock struct{ file *os.File }

func acquireAdvisoryLock(path string) (*advisoryLock, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0o644)
	if err != nil {
		return nil, err
	}
	return &advisoryLock{file: f}, nil
}

func (l *advisoryLock) release() {
	if l == nil || l.file == nil {
		return
	}
	l.file.Close()
}
