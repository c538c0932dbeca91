//go:build !windows

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
	cmd.SysProcAttr.Setpgid = true
}

// Terminate sends SIGTERM to the whole process group
func (p *Process) Terminate() error {
	return p.signalGroup(syscall.SIGTERM)
}

// ForceKill sends SIGKILL to the whole process group
func (p *Process) ForceKill() error {
	return p.signalGroup(syscall.SIGKILL)
}

func (p *Process) signalGroup(sig syscall.Signal) error {
	err := syscall.Kill(-p.Pid(), sig)
	if errors.Is(err, syscall.ESRCH) || errors.Is(err, os.ErrProcessDone) {
		return driver.ErrProcessGone
	}
	return err
}
