package transcoder

import (
	"errors"
	"os"
	"os/exec"
	"runtime"
)

// ExecutableName is the bare name looked up on PATH after the candidates.
const ExecutableName = "HandBrakeCLI"

// ErrNotFound means no HandBrakeCLI executable could be located.
var ErrNotFound = errors.New("HandBrakeCLI not found")

// DefaultCandidates returns the known install locations for goos, most
// specific first.
func DefaultCandidates(goos string) []string {
	switch goos {
	case "darwin":
		return []string{
			"/opt/homebrew/bin/HandBrakeCLI",
			"/usr/local/bin/HandBrakeCLI",
			"/Applications/HandBrakeCLI",
		}
	case "windows":
		return []string{
			`C:\Program Files\HandBrake\HandBrakeCLI.exe`,
			`C:\Program Files (x86)\HandBrake\HandBrakeCLI.exe`,
		}
	default:
		return []string{
			"/usr/bin/HandBrakeCLI",
			"/usr/local/bin/HandBrakeCLI",
			"/var/lib/flatpak/exports/bin/fr.handbrake.HandBrakeCLI",
			"/snap/bin/handbrake-cli",
		}
	}
}

// ResolveExecutable returns the first candidate for which exists reports
// true, then falls back to lookPath(ExecutableName). It returns ErrNotFound
// when nothing resolves. It performs no I/O of its own.
func ResolveExecutable(candidates []string, exists func(string) bool, lookPath func(string) (string, error)) (string, error) {
	for _, candidate := range candidates {
		if candidate != "" && exists(candidate) {
			return candidate, nil
		}
	}

	if lookPath != nil {
		if path, err := lookPath(ExecutableName); err == nil && path != "" {
			return path, nil
		}
	}

	return "", ErrNotFound
}

// IsExecutableFile reports whether path is an existing regular file with an
// executable bit set.
func IsExecutableFile(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	if !info.Mode().IsRegular() {
		return false
	}
	// Windows has no executable bit
	return runtime.GOOS == "windows" || info.Mode().Perm()&0o111 != 0
}

// Locate resolves HandBrakeCLI on this machine. A non-empty override is
// tried before the built-in candidates.
func Locate(goos, override string) (string, error) {
	candidates := DefaultCandidates(goos)
	if override != "" {
		candidates = append([]string{override}, candidates...)
	}
	return ResolveExecutable(candidates, IsExecutableFile, exec.LookPath)
}
