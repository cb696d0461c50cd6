//go:build !windows

package engine

import (
	"os/exec"
	"syscall"
)

// configureDetached puts the unit in its own session so it survives
// the submitting process and its terminal.
func configureDetached(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setsid: true}
}
