//go:build windows

package pandoc

import "os/exec"

// killProcessGroup keeps the default cancellation (Process.Kill) on Windows.
func killProcessGroup(c *exec.Cmd) {}
