//go:build windows

package engine

import "os/exec"

// configureDetached is a no-op on Windows. Setsid doesn't exist there;
// started processes are already independent enough for unit execution.
func configureDetached(cmd *exec.Cmd) {
}
