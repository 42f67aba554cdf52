package main

import (
	"fmt"
	"net"
	"strings"

	"github.com/Microsoft/go-winio"
)

const pipePrefix = `\\.\pipe\`

const defaultIPCPath = pipePrefix + "efd"

// ipcListen opens a named pipe only the owner may connect to. Bare names
// are placed under the local pipe namespace.
func ipcListen(name string) (net.Listener, error) {
	if !strings.HasPrefix(name, pipePrefix) {
		name = pipePrefix + name
	}
	listener, err := winio.ListenPipe(name, &winio.PipeConfig{
		SecurityDescriptor: "D:P(A;;GA;;;OW)",
		InputBufferSize:    64 << 10,
		OutputBufferSize:   64 << 10,
	})
	if err != nil {
		return nil, fmt.Errorf("ipc listen pipe %s: %w", name, err)
	}
	return listener, nil
}

// Named pipes vanish with their last handle.
func ipcCleanup(string) {}
