//go:build !windows

package blockprovider

import (
	"os"

	"golang.org/x/sys/unix"

	perrors "github.com/protobase/protobase/pkg/errors"
)

// advisoryLock holds an exclusive flock on a sentinel file for the
// lifetime of a File block provider, so a second process cannot open the
// same WAL directory for writing.
type advisoryLock struct {
	file *os.File
}

func acquireAdvisoryLock(path string) (*advisoryLock, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0o644)
	if err != nil {
		return nil, err
	}
	if err := unix.Flock(int(f.Fd()), unix.LOCK_EX|unix.LOCK_NB); err != nil {
		f.Close()
		return nil, perrors.Wrapf(err, "wal directory already locked by another process")
	}
	return &advisoryLock{file: f}, nil
}

func (l *advisoryLock) release() {
	if l == nil || l.file == nil {
		return
	}
	unix.Flock(int(l.file.Fd()), unix.LOCK_UN)
	l.file.Close()
}
