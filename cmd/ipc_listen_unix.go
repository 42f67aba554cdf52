//go:build !windows

package main

import (
	"fmt"
	"net"
	"os"
	"path/filepath"
)

var defaultIPCPath = filepath.Join(os.TempDir(), "efd.sock")

// ipcListen replaces a stale socket at socketPath and restricts the new one
// to the current user. Any other file in the way is an error.
func ipcListen(socketPath string) (net.Listener, error) {
	if info, err := os.Lstat(socketPath); err == nil {
		if info.Mode()&os.ModeSocket == 0 {
			return nil, fmt.Errorf("ipc listen: %s exists and is not a socket", socketPath)
		}
		os.Remove(socketPath)
	}

	listener, err := net.Listen("unix", socketPath)
	if err != nil {
		return nil, fmt.Errorf("ipc listen: %w", err)
	}
	if err := os.Chmod(socketPath, 0o600); err != nil {
		listener.Close()
		return nil, fmt.Errorf("ipc listen: %w", err)
	}
	return listener, nil
}

func ipcCleanup(socketPath string) {
	os.Remove(socketPath)
}
