//go:build windows

package sdr

import (
	"errors"
	"os"
	"os/exec"
	"syscall"

	"github.com/roman-kulish/radio-receiver/internal/sdr/driver"
)

func setProcessGroup(cmd *exec.Cmd) {
	if cmd.SysProcAttr == nil {
		cmd.SysProcAttr = &syscall.SysProcAttr{}
	}
	cmd.SysProcAttr.CreationFlags |= syscall.CREATE_NEW_PROCESS_GROUP
}

// Terminate stops the process. Console tools started in their own group
// do not receive Ctrl-Break reliably, so this is the same as ForceKill.
func (p *Process) Terminate() error {
	return p.ForceKill()
}

// ForceKill terminates the process
func (p *Process) ForceKill() error {
	err := p.cmd.Process.Kill()
	if errors.Is(err, os.ErrProcessDone) {
		return driver.ErrProcessGone
	}
	return err
}
