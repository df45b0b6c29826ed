//go:build unix

package sockopt

import "golang.org/x/sys/unix"

func apply(fd uintptr, opts Options) error {
	s := int(fd)
	if opts.ReuseAddr {
		if err := unix.SetsockoptInt(s, unix.SOL_SOCKET, unix.SO_REUSEADDR, 1); err != nil {
			return err
		}
		if err := unix.SetsockoptInt(s, unix.SOL_SOCKET, unix.SO_REUSEPORT, 1); err != nil {
			return err
		}
	}
	if opts.ReceiveBuffer > 0 {
		if err := unix.SetsockoptInt(s, unix.SOL_SOCKET, unix.SO_RCVBUF, opts.ReceiveBuffer); err != nil {
			return err
		}
	}
	if opts.SendBuffer > 0 {
		if err := unix.SetsockoptInt(s, unix.SOL_SOCKET, unix.SO_SNDBUF, opts.SendBuffer); err != nil {
			return err
		}
	}
	return nil
}
