//go:build !unix

package sockopt

// Socket options are left at their defaults on platforms without the unix
// socket API.
func apply(uintptr, Options) error {
	return nil
}
