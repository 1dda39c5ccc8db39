// Package utils provides small synchronization helpers shared by the
// tracer and its re-exec bootstrap.
package utils

import (
	"fmt"
	"io"
	"os"
	"syscall"
)

// SyncPipe is a pipe used to report bootstrap failures from the child
// back to the parent before the child has execed the target program.
type SyncPipe struct {
	parent       *os.File
	child        *os.File
	parentClosed bool
	childClosed  bool
}

// NewSyncPipe creates a new synchronization pipe.
func NewSyncPipe() (*SyncPipe, error) {
	fds := make([]int, 2)
	if err := syscall.Pipe(fds); err != nil {
		return nil, fmt.Errorf("pipe: %w", err)
	}

	return &SyncPipe{
		parent: os.NewFile(uintptr(fds[0]), "syncpipe-parent"),
		child:  os.NewFile(uintptr(fds[1]), "syncpipe-child"),
	}, nil
}

// ParentFile returns the parent (reading) end of the pipe.
func (s *SyncPipe) ParentFile() *os.File {
	return s.parent
}

// ChildFile returns the child (writing) end of the pipe.
func (s *SyncPipe) ChildFile() *os.File {
	return s.child
}

// CloseParent closes the parent end of the pipe. It is safe to call more
// than once.
func (s *SyncPipe) CloseParent() error {
	if s.parent == nil || s.parentClosed {
		return nil
	}
	s.parentClosed = true
	return s.parent.Close()
}

// CloseChild closes the child end of the pipe. It is safe to call more
// than once.
func (s *SyncPipe) CloseChild() error {
	if s.child == nil || s.childClosed {
		return nil
	}
	s.childClosed = true
	return s.child.Close()
}

// Close closes both ends of the pipe.
func (s *SyncPipe) Close() {
	s.CloseParent()
	s.CloseChild()
}

// Wait waits for a signal on the parent end (blocking read).
func (s *SyncPipe) Wait() error {
	buf := make([]byte, 1)
	_, err := s.parent.Read(buf)
	return err
}

// Signal sends a signal on the child end.
func (s *SyncPipe) Signal() error {
	_, err := s.child.Write([]byte{0})
	return err
}

// WaitWithError waits for the child to either close its end (success)
// or write an error message, and returns that message as an error.
func (s *SyncPipe) WaitWithError() error {
	buf := make([]byte, 1024)
	n, err := s.parent.Read(buf)
	if err == io.EOF {
		return nil
	}
	if err != nil {
		return err
	}
	if n > 0 && buf[0] != 0 {
		return fmt.Errorf("%s", string(buf[:n]))
	}
	return nil
}

// SignalError sends an error message on the child end.
func (s *SyncPipe) SignalError(err error) error {
	_, writeErr := s.child.Write([]byte(err.Error()))
	return writeErr
}
