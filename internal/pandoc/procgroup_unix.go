//go:build !windows

package pandoc

import (
	"os/exec"
	"syscall"
)

// killProcessGroup starts the converter in its own process group and makes
// context cancellation kill the whole group, so LaTeX engines spawned by
// the converter die with it.
func killProcessGroup(c *exec.Cmd) {
	c.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	c.Cancel = func() error {
		if c.Process == nil {
			return nil
		}
		return syscall.Kill(-c.Process.Pid, syscall.SIGKILL)
	}
}
