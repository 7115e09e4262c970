package ipc

import (
	"fmt"
	"iter"
	"os"
)

// SocketSlots is how many discord-ipc-N endpoints are tried per base directory.
const SocketSlots = 10

// Locator enumerates candidate endpoint paths in try order. The zero value
// reads the process environment.
type Locator struct {
	Getenv  func(string) string
	TempDir func() string
}

// DefaultLocator reads the real environment.
var DefaultLocator = Locator{}

// Candidates is DefaultLocator.Candidates.
func Candidates() iter.Seq[string] {
	return DefaultLocator.Candidates()
}

// Candidates returns a lazy sequence of endpoint paths. Every range over it
// re-reads the environment, so the same value can be reused across attempts.
func (l Locator) Candidates() iter.Seq[string] {
	return func(yield func(string) bool) {
		for _, base := range l.baseDirs() {
			for i := 0; i < SocketSlots; i++ {
				if !yield(endpointPath(base, i)) {
					return
				}
			}
		}
	}
}

func (l Locator) getenv(key string) string {
	if l.Getenv != nil {
		return l.Getenv(key)
	}
	return os.Getenv(key)
}

func (l Locator) tempDir() string {
	if l.TempDir != nil {
		return l.TempDir()
	}
	return os.TempDir()
}

func socketName(i int) string {
	return fmt.Sprintf("discord-ipc-%d", i)
}
