//go:build !(linux || darwin || freebsd || netbsd || openbsd)

package logging

import "os"

// Writes within one process are already serialized by RotatingWriter.mu.
func lockFile(*os.File) error { return nil }

func unlockFile(*os.File) {}
