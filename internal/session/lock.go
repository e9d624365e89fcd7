package session

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/Iron-Ham/capctl/internal/errors"
	"github.com/Iron-Ham/capctl/internal/logging"
	"github.com/spf13/afero"
)

// LockSuffix is appended to the device name to form its lock file name.
const LockSuffix = ".lock"

// ErrDeviceLocked is returned when another process controls the device.
// It matches errors.ErrDeviceBusy.
var ErrDeviceLocked = fmt.Errorf("%w: locked by another process", errors.ErrDeviceBusy)

// Lock represents exclusive control of one instrument.
type Lock struct {
	Device    string    `json:"device"`
	PID       int       `json:"pid"`
	Hostname  string    `json:"hostname"`
	StartedAt time.Time `json:"started_at"`

	fs       afero.Fs
	lockFile string
	logger   *logging.Logger
}

// LockPath returns the lock file for deviceName inside dir.
func LockPath(dir, deviceName string) string {
	name := strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\', ':', ' ':
			return '_'
		}
		return r
	}, deviceName)
	return filepath.Join(dir, name+LockSuffix)
}

// AcquireLock takes the lock for deviceName. A lock left by a dead process
// is removed first. logger may be nil.
func AcquireLock(fs afero.Fs, dir, deviceName string, logger *logging.Logger) (*Lock, error) {
	lockPath := LockPath(dir, deviceName)

	if existing, err := ReadLock(fs, lockPath); err == nil {
		if isProcessAlive(existing.PID) {
			if logger != nil {
				logger.Error("failed to acquire device lock",
					"device", deviceName,
					"reason", fmt.Sprintf("locked by PID %d on %s", existing.PID, existing.Hostname),
				)
			}
			return nil, fmt.Errorf("%w: PID %d on %s", ErrDeviceLocked, existing.PID, existing.Hostname)
		}
		if err := fs.Remove(lockPath); err != nil && !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to remove stale lock: %w", err)
		}
		if logger != nil {
			logger.Warn("stale device lock cleaned", "device", deviceName, "old_pid", existing.PID)
		}
	}

	if err := fs.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create lock directory: %w", err)
	}

	hostname, err := os.Hostname()
	if err != nil {
		hostname = "unknown"
	}

	lock := &Lock{
		Device:    deviceName,
		PID:       os.Getpid(),
		Hostname:  hostname,
		StartedAt: time.Now(),
		fs:        fs,
		lockFile:  lockPath,
		logger:    logger,
	}

	data, err := json.MarshalIndent(lock, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal lock: %w", err)
	}

	// O_EXCL loses the race cleanly against a concurrent acquirer.
	f, err := fs.OpenFile(lockPath, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0644)
	if err != nil {
		if os.IsExist(err) {
			return nil, ErrDeviceLocked
		}
		return nil, fmt.Errorf("failed to create lock file: %w", err)
	}
	defer f.Close()

	if _, err := f.Write(data); err != nil {
		_ = fs.Remove(lockPath)
		return nil, fmt.Errorf("failed to write lock file: %w", err)
	}

	if logger != nil {
		logger.Info("device lock acquired", "device", deviceName, "pid", lock.PID)
	}
	return lock, nil
}

// Release removes the lock file if this process still owns it. Safe to
// call multiple times.
func (l *Lock) Release() error {
	if l == nil || l.lockFile == "" {
		return nil
	}

	existing, err := ReadLock(l.fs, l.lockFile)
	if err != nil || existing.PID != l.PID {
		return nil
	}

	if err := l.fs.Remove(l.lockFile); err != nil {
		return err
	}
	if l.logger != nil {
		l.logger.Info("device lock released", "device", l.Device)
	}
	return nil
}

// ReadLock parses the lock file at lockPath.
func ReadLock(fs afero.Fs, lockPath string) (*Lock, error) {
	data, err := afero.ReadFile(fs, lockPath)
	if err != nil {
		return nil, err
	}

	var lock Lock
	if err := json.Unmarshal(data, &lock); err != nil {
		return nil, fmt.Errorf("failed to parse lock file: %w", err)
	}
	lock.fs = fs
	lock.lockFile = lockPath
	return &lock, nil
}

// IsLocked reports whether a live process holds the lock for deviceName.
// The lock info is returned even when it is stale.
func IsLocked(fs afero.Fs, dir, deviceName string) (*Lock, bool) {
	lock, err := ReadLock(fs, LockPath(dir, deviceName))
	if err != nil {
		return nil, false
	}
	return lock, isProcessAlive(lock.PID)
}

// isProcessAlive checks if a process with the given PID is still running.
func isProcessAlive(pid int) bool {
	if pid <= 0 {
		return false
	}
	process, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	// Signal 0 probes for existence without delivering anything.
	return process.Signal(syscall.Signal(0)) == nil
}
