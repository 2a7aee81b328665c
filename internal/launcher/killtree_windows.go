//go:build windows

package launcher

import (
	"fmt"
	"os/exec"
	"strconv"
)

const (
	hostOS    = "windows"
	scriptExt = ".bat"
)

func shellCommand(script string) (string, []string) {
	return "cmd.exe", []string{"/C", script}
}

func setProcAttr(*exec.Cmd) {}

// KillTree terminates pid and all of its descendants with taskkill.
func KillTree(pid int) error {
	out, err := exec.Command("taskkill", "/T", "/F", "/PID", strconv.Itoa(pid)).CombinedOutput()
	if err != nil {
		return fmt.Errorf("taskkill %d: %w: %s", pid, err, out)
	}
	return nil
}
