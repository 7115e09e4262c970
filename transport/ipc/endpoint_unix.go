//go:build !windows

package ipc

import "path/filepath"

// baseDirs lists, in priority order, the runtime dir, $TMPDIR, the platform
// temp dir and /tmp. Equal entries are kept; they only cost a failed dial.
func (l Locator) baseDirs() []string {
	var dirs []string
	for _, d := range []string{l.getenv("XDG_RUNTIME_DIR"), l.getenv("TMPDIR"), l.tempDir(), "/tmp"} {
		if d != "" {
			dirs = append(dirs, d)
		}
	}
	return dirs
}

func endpointPath(base string, i int) string {
	return filepath.Join(base, socketName(i))
}
