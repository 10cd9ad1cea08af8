package common

import "errors"

var ErrModulePaused = errors.New("module paused")

// PauseView exposes the admin-controlled pause switches for native modules.
type PauseView interface {
	IsPaused(module string) bool
}

// Guard rejects the operation when the named module is paused.
func Guard(p PauseView, module string) error {
	if p == nil || module == "" {
		return nil
	}
	if p.IsPaused(module) {
		return ErrModulePaused
	}
	return nil
}
