// Package disposal moves successfully compressed originals into the
// platform trash so they stay recoverable.
package disposal

import (
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"desktop-video-compress/internal/filesystem"
	"desktop-video-compress/internal/logging"
)

// ErrPermission means the OS refused the move, typically because the agent
// lacks Full Disk Access (macOS) or write access to the trash.
var ErrPermission = errors.New("permission denied moving file to trash")

// ErrUnsupported means the platform has no trash this package can reach.
// The Windows Recycle Bin needs shell APIs, so originals stay in place there.
var ErrUnsupported = errors.New("no trash support on this platform")

// PermissionAdvice is the text shown once when disposal hits ErrPermission.
const PermissionAdvice = "Originals cannot be moved to the Trash. Grant Full Disk Access to the agent " +
	"(System Settings > Privacy & Security > Full Disk Access) and restart it."

// Manager moves files into the trash of the current user.
type Manager struct {
	trashDir    string
	freedesk    bool
	unsupported bool

	rename func(src, dst string) error
	now    func() time.Time

	advisory     func(err error)
	advisoryOnce sync.Once
}

// Options configures a Manager.
type Options struct {
	// GOOS selects the trash layout: "darwin" uses ~/.Trash, "windows" is
	// unsupported, everything else uses the freedesktop.org layout.
	GOOS string
	// Home is the user's home directory.
	Home string
	// DataHome overrides $XDG_DATA_HOME for the freedesktop layout.
	DataHome string
	// Advisory is called once, on the first permission failure.
	Advisory func(err error)
}

// New creates a Manager.
func New(opts Options) *Manager {
	m := &Manager{
		rename:   os.Rename,
		now:      time.Now,
		advisory: opts.Advisory,
	}

	switch opts.GOOS {
	case "windows":
		m.unsupported = true
	case "darwin":
		m.trashDir = filepath.Join(opts.Home, ".Trash")
	default:
		dataHome := opts.DataHome
		if dataHome == "" {
			dataHome = filepath.Join(opts.Home, ".local", "share")
		}
		m.trashDir = filepath.Join(dataHome, "Trash")
		m.freedesk = true
	}
	return m
}

// TrashDir returns the directory originals are moved to. It is empty when
// the platform is unsupported.
func (m *Manager) TrashDir() string {
	if m.freedesk {
		return filepath.Join(m.trashDir, "files")
	}
	return m.trashDir
}

// Dispose moves path to the trash and returns its new location.
// Permission failures wrap ErrPermission; the file is left in place on any error.
func (m *Manager) Dispose(path string) (string, error) {
	if m.unsupported {
		return "", ErrUnsupported
	}

	filesDir := m.TrashDir()
	if err := os.MkdirAll(filesDir, 0o700); err != nil {
		return "", m.classify(path, fmt.Errorf("failed to create trash directory: %w", err))
	}

	dest := m.uniqueDest(filesDir, filepath.Base(path))

	var infoPath string
	if m.freedesk {
		var err error
		infoPath, err = m.writeTrashInfo(path, filepath.Base(dest))
		if err != nil {
			return "", m.classify(path, err)
		}
	}

	if err := m.move(path, dest); err != nil {
		if infoPath != "" {
			_ = os.Remove(infoPath)
		}
		return "", m.classify(path, err)
	}

	logging.Debug("Disposal: moved %s to %s", path, dest)
	return dest, nil
}

func (m *Manager) classify(path string, err error) error {
	if filesystem.IsPermission(err) {
		m.advisoryOnce.Do(func() {
			if m.advisory != nil {
				m.advisory(err)
			}
		})
		return fmt.Errorf("%w: %s: %v", ErrPermission, path, err)
	}
	return fmt.Errorf("failed to move %s to trash: %w", path, err)
}

// uniqueDest picks a name in dir that does not exist yet.
func (m *Manager) uniqueDest(dir, name string) string {
	dest := filepath.Join(dir, name)
	if _, err := os.Lstat(dest); os.IsNotExist(err) {
		return dest
	}

	ext := filepath.Ext(name)
	stem := strings.TrimSuffix(name, ext)
	stamp := m.now().Format("15.04.05")
	for i := 0; ; i++ {
		candidate := fmt.Sprintf("%s %s%s", stem, stamp, ext)
		if i > 0 {
			candidate = fmt.Sprintf("%s %s-%d%s", stem, stamp, i, ext)
		}
		dest = filepath.Join(dir, candidate)
		if _, err := os.Lstat(dest); os.IsNotExist(err) {
			return dest
		}
	}
}

// writeTrashInfo writes the freedesktop.org .trashinfo record for a file
// that will be stored under trashName.
func (m *Manager) writeTrashInfo(original, trashName string) (string, error) {
	infoDir := filepath.Join(m.trashDir, "info")
	if err := os.MkdirAll(infoDir, 0o700); err != nil {
		return "", fmt.Errorf("failed to create trash info directory: %w", err)
	}

	abs, err := filepath.Abs(original)
	if err != nil {
		abs = original
	}
	content := fmt.Sprintf("[Trash Info]\nPath=%s\nDeletionDate=%s\n",
		(&url.URL{Path: abs}).EscapedPath(),
		m.now().Format("2006-01-02T15:04:05"))

	infoPath := filepath.Join(infoDir, trashName+".trashinfo")
	f, err := os.OpenFile(infoPath, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o600)
	if err != nil {
		return "", fmt.Errorf("failed to create trash info: %w", err)
	}
	if _, err := f.WriteString(content); err != nil {
		_ = f.Close()
		_ = os.Remove(infoPath)
		return "", fmt.Errorf("failed to write trash info: %w", err)
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(infoPath)
		return "", fmt.Errorf("failed to close trash info: %w", err)
	}
	return infoPath, nil
}

// move renames src to dst, copying across filesystems when needed.
func (m *Manager) move(src, dst string) error {
	err := m.rename(src, dst)
	if err == nil || !filesystem.IsCrossDevice(err) {
		return err
	}

	logging.Debug("Disposal: %s is on another filesystem, copying", src)
	if err := copyFile(src, dst); err != nil {
		_ = os.Remove(dst)
		return err
	}
	if err := os.Remove(src); err != nil {
		_ = os.Remove(dst)
		return err
	}
	return nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer func() { _ = in.Close() }()

	info, err := in.Stat()
	if err != nil {
		return err
	}

	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_EXCL, info.Mode().Perm())
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		_ = out.Close()
		return err
	}
	return out.Close()
}
