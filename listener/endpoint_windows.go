// Copyright 2026 The Keyrelay Authors
// SPDX-License-Identifier: Apache-2.0

//go:build windows

package listener

import (
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/Microsoft/go-winio"
	"golang.org/x/sys/windows"
)

// PipeName is the conventional agent endpoint on Windows: the pipe
// name Win32-OpenSSH client tooling connects to. Interoperability
// depends on the exact name, so it is a constant rather than
// configuration.
const PipeName = `\\.\pipe\openssh-ssh-agent`

// pipeBufferSize matches the 64 KiB per-direction buffering that
// OpenSSH's own agent uses for this pipe.
const pipeBufferSize = 64 * 1024

func conventionalEndpointName() string { return PipeName }

// probeTimeout bounds the pre-bind conflict probe.
const probeTimeout = 250 * time.Millisecond

// probeConflict dials the conventional pipe to detect an existing
// owner. A successful connect means another agent (Win32-OpenSSH's
// own service, usually) is answering — caller-fatal.
func probeConflict(name string) error {
	timeout := probeTimeout
	probe, err := winio.DialPipe(name, &timeout)
	if err == nil {
		probe.Close()
		return fmt.Errorf("%w: %s is answering", ErrConflictingAgent, name)
	}
	return nil
}

// bindEndpoint creates the named pipe listener. go-winio requests the
// first pipe instance exclusively, so losing a bind race with another
// process surfaces here as access-denied — classified as a conflict.
func bindEndpoint(name string) (endpoint, error) {
	pipeListener, err := winio.ListenPipe(name, &winio.PipeConfig{
		// Empty SecurityDescriptor: creator/owner only, the same
		// policy the socket permissions enforce on other platforms.
		MessageMode:      false,
		InputBufferSize:  pipeBufferSize,
		OutputBufferSize: pipeBufferSize,
	})
	if err != nil {
		if errors.Is(err, windows.ERROR_ACCESS_DENIED) || errors.Is(err, windows.ERROR_PIPE_BUSY) {
			return nil, fmt.Errorf("%w: %v", ErrConflictingAgent, err)
		}
		return nil, fmt.Errorf("binding %s: %w", name, err)
	}
	return &pipeEndpoint{listener: pipeListener}, nil
}

type pipeEndpoint struct {
	listener  net.Listener
	closeOnce sync.Once
	closeErr  error
}

func (e *pipeEndpoint) accept() (session, error) {
	connection, err := e.listener.Accept()
	if err != nil {
		return nil, err
	}
	return &pipeSession{connection: connection}, nil
}

func (e *pipeEndpoint) close() error {
	e.closeOnce.Do(func() {
		e.closeErr = e.listener.Close()
	})
	return e.closeErr
}

type pipeSession struct {
	connection net.Conn
}

func (s *pipeSession) conn() net.Conn { return s.connection }

func (s *pipeSession) close() error { return s.connection.Close() }

// peerProcessID asks the kernel which process holds the client end of
// the pipe. go-winio's connection type exposes its underlying handle
// through an Fd method; a connection without one cannot be identified
// and the session is rejected.
func (s *pipeSession) peerProcessID() (int, error) {
	handleConn, ok := s.connection.(interface{ Fd() uintptr })
	if !ok {
		return 0, fmt.Errorf("pipe connection %T exposes no handle", s.connection)
	}

	var pid uint32
	if err := windows.GetNamedPipeClientProcessId(windows.Handle(handleConn.Fd()), &pid); err != nil {
		return 0, fmt.Errorf("GetNamedPipeClientProcessId: %w", err)
	}
	if pid == 0 {
		return 0, fmt.Errorf("kernel reported pid 0 for pipe client")
	}

	return int(pid), nil
}

// resolvePeer confirms the identified process is still alive and
// gathers audit metadata about it. OpenProcess fails for a PID whose
// process has exited, which is exactly the dead-peer signal we need.
func resolvePeer(pid int) (*Peer, error) {
	handle, err := windows.OpenProcess(windows.PROCESS_QUERY_LIMITED_INFORMATION, false, uint32(pid))
	if err != nil {
		return nil, fmt.Errorf("client process %d exited before identification: %w", pid, err)
	}
	defer windows.CloseHandle(handle)

	peer := &Peer{PID: pid}

	// Best effort: the image path is audit metadata, not a gate.
	buffer := make([]uint16, 4096)
	size := uint32(len(buffer))
	if err := windows.QueryFullProcessImageName(handle, 0, &buffer[0], &size); err == nil {
		peer.Executable = windows.UTF16ToString(buffer[:size])
	}

	return peer, nil
}
