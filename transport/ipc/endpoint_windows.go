//go:build windows

package ipc

const pipePrefix = `\\.\pipe\`

// Named pipes live in a single namespace.
func (l Locator) baseDirs() []string {
	return []string{pipePrefix}
}

func endpointPath(base string, i int) string {
	return base + socketName(i)
}
