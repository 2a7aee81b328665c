//go:build !windows

package launcher

import (
	"errors"
	"os/exec"
	"syscall"
)

const (
	hostOS    = "unix"
	scriptExt = ".sh"
)

func shellCommand(script string) (string, []string) {
	return "/bin/sh", []string{script}
}

// setProcAttr puts the child in its own process group so that the whole tree
// can be signalled at once.
func setProcAttr(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
}

// KillTree kills every process in pid's process group, then pid itself.
// Descendants are enumerated by group membership, which the launcher
// establishes when it starts the child.
func KillTree(pid int) error {
	groupErr := syscall.Kill(-pid, syscall.SIGKILL)
	rootErr := syscall.Kill(pid, syscall.SIGKILL)
	if groupErr != nil && rootErr != nil && !errors.Is(rootErr, syscall.ESRCH) {
		return rootErr
	}
	return nil
}
