//go:build !windows

package httpserver

import "golang.org/x/sys/unix"

const (
	pollIn  = int16(unix.POLLIN)
	pollOut = int16(unix.POLLOUT)
	pollErr = int16(unix.POLLERR | unix.POLLHUP | unix.POLLNVAL)
)

func pollFds(fds []unix.PollFd, timeoutMs int) (int, error) {
	return unix.Poll(fds, timeoutMs)
}

func setNonblocking(fd int) error {
	return unix.SetNonblock(fd, true)
}

func closeFD(fd int) {
	_ = unix.Close(fd)
}

func makeSelfPipe() (r, w int, err error) {
	var fds [2]int
	if err := unix.Pipe2(fds[:], unix.O_NONBLOCK); err != nil {
		return -1, -1, err
	}
	return fds[0], fds[1], nil
}

func listenSocket(port int) (int, error) {
	fd, err := unix.Socket(unix.AF_INET, unix.SOCK_STREAM, 0)
	if err != nil {
		return -1, err
	}
	if err := unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_REUSEADDR, 1); err != nil {
		unix.Close(fd)
		return -1, err
	}
	addr := &unix.SockaddrInet4{Port: port}
	if err := unix.Bind(fd, addr); err != nil {
		unix.Close(fd)
		return -1, err
	}
	if err := unix.Listen(fd, backlogSize); err != nil {
		unix.Close(fd)
		return -1, err
	}
	if err := setNonblocking(fd); err != nil {
		unix.Close(fd)
		return -1, err
	}
	return fd, nil
}

func acceptConn(listenFD int) (int, error) {
	nfd, _, err := unix.Accept4(listenFD, unix.SOCK_NONBLOCK)
	return nfd, err
}
