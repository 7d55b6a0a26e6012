package ledger

import (
	"log/slog"
	"os"
	"path/filepath"
	"sync"
)

// saver rewrites one ledger file in the background.
//
// Requests coalesce: any number of signals between two writes produce a
// single write of the latest state.
type saver struct {
	path   string
	encode func() ([]byte, error)

	signal chan struct{}   // buffered, size 1
	flush  chan chan error // synchronous flush requests
	quit   chan struct{}
	done   chan struct{}
	once   sync.Once

	mu      sync.Mutex
	lastErr error
}

func newSaver(path string, encode func() ([]byte, error)) *saver {
	s := &saver{
		path:   path,
		encode: encode,
		signal: make(chan struct{}, 1),
		flush:  make(chan chan error),
		quit:   make(chan struct{}),
		done:   make(chan struct{}),
	}
	go s.loop()
	return s
}

// request schedules a write. Never blocks.
func (s *saver) request() {
	select {
	case s.signal <- struct{}{}:
	default:
	}
}

func (s *saver) loop() {
	defer close(s.done)
	for {
		select {
		case <-s.signal:
			s.write()
		case reply := <-s.flush:
			s.drain()
			reply <- s.write()
		case <-s.quit:
			s.drain()
			s.write()
			return
		}
	}
}

// drain consumes a pending signal so a flush does not cause a second,
// redundant write right after it.
func (s *saver) drain() {
	select {
	case <-s.signal:
	default:
	}
}

func (s *saver) write() error {
	data, err := s.encode()
	if err == nil {
		err = writeFile(s.path, data)
	}
	s.mu.Lock()
	s.lastErr = err
	s.mu.Unlock()
	if err != nil {
		slog.Error("ledger save failed", "path", s.path, "error", err)
		return err
	}
	slog.Debug("ledger saved", "path", s.path, "bytes", len(data))
	return nil
}

// Flush writes the current state and returns the write error.
// After Close it reports the result of the final write.
func (s *saver) Flush() error {
	reply := make(chan error, 1)
	select {
	case s.flush <- reply:
		return <-reply
	case <-s.done:
		return s.err()
	}
}

// Close performs a final write and stops the saver. Idempotent.
func (s *saver) Close() error {
	s.once.Do(func() { close(s.quit) })
	<-s.done
	return s.err()
}

func (s *saver) err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastErr
}

func writeFile(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}
