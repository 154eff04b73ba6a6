//go:build unix

package validator

import (
	"os/exec"
	"syscall"
)

// configureProcess starts the validator in its own process group so a
// timeout kills the whole tree, not just the interpreter.
func configureProcess(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	cmd.Cancel = func() error {
		if cmd.Process == nil {
			return nil
		}
		return syscall.Kill(-cmd.Process.Pid, syscall.SIGKILL)
	}
}
