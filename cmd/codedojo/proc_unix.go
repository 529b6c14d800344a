//go:build unix

package main

import (
	"os/exec"
	"syscall"
)

// configureDaemonProcess puts the server in its own process group so it
// outlives the CLI.
func configureDaemonProcess(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{
		Setpgid: true,
	}
}
