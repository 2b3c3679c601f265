//go:build windows

package daemon

import (
	"os"
	"os/exec"
)

func setDaemonSysProcAttr(cmd *exec.Cmd) {
	// Windows has no Setsid; the spawned process stays in the parent console.
}

func processExists(pid int) bool {
	// No kill(pid, 0) equivalent without OpenProcess. A positive pid is treated
	// as live; a stale pid surfaces as connection refused on the addr.
	return pid > 0
}

func signalTerm(proc *os.Process) error {
	// SIGTERM is not deliverable on Windows.
	return proc.Kill()
}
