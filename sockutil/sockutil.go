// Package sockutil wraps the raw, non-blocking TCP socket operations the
// reactor needs: listener setup, accept, a blocking send and a non-blocking
// receive on a non-blocking descriptor, and peer/local address resolution. It talks
// directly to golang.org/x/sys/unix rather than net.Listener/net.Conn so the
// reactor can own the file descriptor and register it with the poller
// itself.
package sockutil

import (
	"fmt"
	"net"
	"strconv"

	"golang.org/x/sys/unix"

	liberr "github.com/sabouaram/httpengine/errors"
)

// InvalidFD is the sentinel for "no socket".
const InvalidFD = -1

// ListenStream creates, binds, and listens on a non-blocking TCP/IPv4
// acceptor socket bound to host:port. Passing port 0 lets the kernel assign
// an ephemeral port; use BoundPort to read back the value actually bound.
func ListenStream(host string, port int, reuseAddr bool) (fd int, err liberr.Error) {
	ip, resolveErr := resolveIPv4(host)
	if resolveErr != nil {
		return InvalidFD, liberr.ErrSocketInit.Error(resolveErr)
	}

	sockFD, sysErr := unix.Socket(unix.AF_INET, unix.SOCK_STREAM, unix.IPPROTO_TCP)
	if sysErr != nil {
		return InvalidFD, liberr.ErrSocketInit.Error(sysErr)
	}

	if reuseAddr {
		if sysErr = unix.SetsockoptInt(sockFD, unix.SOL_SOCKET, unix.SO_REUSEADDR, 1); sysErr != nil {
			_ = unix.Close(sockFD)
			return InvalidFD, liberr.ErrSocketInit.Error(sysErr)
		}
	}

	addr := &unix.SockaddrInet4{Port: port}
	copy(addr.Addr[:], ip)

	if sysErr = unix.Bind(sockFD, addr); sysErr != nil {
		_ = unix.Close(sockFD)
		return InvalidFD, liberr.ErrSocketInit.Error(sysErr)
	}

	if sysErr = unix.SetNonblock(sockFD, true); sysErr != nil {
		_ = unix.Close(sockFD)
		return InvalidFD, liberr.ErrSocketInit.Error(sysErr)
	}

	if sysErr = unix.Listen(sockFD, unix.SOMAXCONN); sysErr != nil {
		_ = unix.Close(sockFD)
		return InvalidFD, liberr.ErrSocketInit.Error(sysErr)
	}

	return sockFD, nil
}

func resolveIPv4(host string) (net.IP, error) {
	if host == "" {
		return net.IPv4zero.To4(), nil
	}
	ip := net.ParseIP(host)
	if ip == nil {
		ips, err := net.LookupIP(host)
		if err != nil {
			return nil, err
		}
		for _, candidate := range ips {
			if v4 := candidate.To4(); v4 != nil {
				return v4, nil
			}
		}
		return nil, fmt.Errorf("no IPv4 address found for host %q", host)
	}
	v4 := ip.To4()
	if v4 == nil {
		return nil, fmt.Errorf("host %q did not resolve to an IPv4 address", host)
	}
	return v4, nil
}

// BoundPort reads back the local port a listening socket was bound to,
// resolving an ephemeral (port 0) bind.
func BoundPort(fd int) (int, liberr.Error) {
	sa, sysErr := unix.Getsockname(fd)
	if sysErr != nil {
		return 0, liberr.ErrSocketInit.Error(sysErr)
	}
	v4, ok := sa.(*unix.SockaddrInet4)
	if !ok {
		return 0, liberr.ErrSocketInit.Error(fmt.Errorf("unexpected sockaddr type %T", sa))
	}
	return v4.Port, nil
}

// PeerAddr formats the remote address of a connected socket as "ip:port".
func PeerAddr(fd int) string {
	sa, sysErr := unix.Getpeername(fd)
	if sysErr != nil {
		return ""
	}
	v4, ok := sa.(*unix.SockaddrInet4)
	if !ok {
		return ""
	}
	ip := net.IP(v4.Addr[:])
	return ip.String() + ":" + strconv.Itoa(v4.Port)
}

// AcceptNonblocking accepts one pending connection from a non-blocking
// listener socket. ok is false (with no error) when no connection was
// pending (EAGAIN/EWOULDBLOCK), the expected outcome of a spurious or
// shared readiness wakeup.
func AcceptNonblocking(listenFD int) (connFD int, ok bool, err liberr.Error) {
	nfd, _, sysErr := unix.Accept4(listenFD, unix.SOCK_NONBLOCK)
	if sysErr != nil {
		if sysErr == unix.EAGAIN || sysErr == unix.EWOULDBLOCK || sysErr == unix.ECONNABORTED {
			return InvalidFD, false, nil
		}
		return InvalidFD, false, liberr.ErrAcceptFailed.Error(sysErr)
	}
	if sysErr = unix.SetsockoptInt(nfd, unix.IPPROTO_TCP, unix.TCP_NODELAY, 1); sysErr != nil {
		_ = unix.Close(nfd)
		return InvalidFD, false, liberr.ErrAcceptFailed.Error(sysErr)
	}
	return nfd, true, nil
}

// ReceiveNonblocking reads up to len(buf) bytes from a non-blocking socket.
// n==0, ok==true, err==nil on EAGAIN (caller should wait for readiness again).
// n==0, ok==false, err==nil on orderly peer shutdown (EOF).
func ReceiveNonblocking(fd int, buf []byte) (n int, ok bool, err liberr.Error) {
	for {
		n, sysErr := unix.Read(fd, buf)
		if sysErr == unix.EINTR {
			continue
		}
		if sysErr == unix.EAGAIN || sysErr == unix.EWOULDBLOCK {
			return 0, true, nil
		}
		if sysErr != nil {
			return 0, false, liberr.ErrAcceptFailed.Error(sysErr)
		}
		if n == 0 {
			return 0, false, nil
		}
		return n, true, nil
	}
}

// SendBlocking writes every byte of buf to fd, temporarily toggling the
// descriptor to blocking mode for the duration of the write and restoring
// non-blocking mode before returning. This matches the one-send-at-a-time
// response path: the reactor never has more than one writer per connection.
func SendBlocking(fd int, buf []byte) liberr.Error {
	if sysErr := unix.SetNonblock(fd, false); sysErr != nil {
		return liberr.ErrSendFailed.Error(sysErr)
	}
	defer func() { _ = unix.SetNonblock(fd, true) }()

	for len(buf) > 0 {
		n, sysErr := unix.Write(fd, buf)
		if sysErr == unix.EINTR {
			continue
		}
		if sysErr != nil {
			return liberr.ErrSendFailed.Error(sysErr)
		}
		buf = buf[n:]
	}
	return nil
}

// Close closes a socket, tolerating an already-invalid descriptor.
func Close(fd int) {
	if fd != InvalidFD {
		_ = unix.Close(fd)
	}
}
