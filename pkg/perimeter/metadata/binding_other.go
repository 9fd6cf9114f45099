//go:build !(linux || darwin || freebsd || netbsd || openbsd)

package metadata

import "errors"

// errUnsupportedPlatform is returned for every query on platforms without a
// POSIX ownership model.
var errUnsupportedPlatform = errors.New("posix ownership metadata is not available on this platform")

type unsupportedBinding struct{}

// DefaultBinding returns a binding that fails every query on this platform.
func DefaultBinding() Binding {
	return unsupportedBinding{}
}

func (unsupportedBinding) StatFile(string) (Stat, error) {
	return Stat{}, errUnsupportedPlatform
}

func (unsupportedBinding) StatDir(string) (Stat, error) {
	return Stat{}, errUnsupportedPlatform
}
