package ptychan

import "syscall"

// unixGetpgid returns the process group id of pid itself (not the
// terminal's foreground process group); Signal uses it as a fallback. REC targets
// Unix-like hosts exclusively (PTYs are a POSIX concept), matching its
// teacher's own Linux-only assumptions (landrun, tmux, 9P sockets).
func unixGetpgid(pid int) (int, error) {
	return syscall.Getpgid(pid)
}
