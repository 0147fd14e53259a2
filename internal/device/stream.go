package device

import "sync"

// Stream is a serial execution queue: launches enqueued on one stream run in
// FIFO order and never overlap. Separate streams are independent.
//
// The first error any launch produces is sticky. There are no retries at this
// layer; callers treat a stream error as fatal to the in-flight work.
type Stream struct {
	tasks   chan func()
	pending sync.WaitGroup

	mu  sync.Mutex
	err error
}

// NewStream creates an independent execution queue on the device.
func (d *Device) NewStream() *Stream {
	s := &Stream{tasks: make(chan func(), 64)}
	go s.run()
	return s
}

func (s *Stream) run() {
	for t := range s.tasks {
		t()
	}
}

func (s *Stream) enqueue(task func() error) {
	s.pending.Add(1)
	s.tasks <- func() {
		defer s.pending.Done()
		if err := task(); err != nil {
			s.setErr(err)
		}
	}
}

func (s *Stream) setErr(err error) {
	s.mu.Lock()
	if s.err == nil {
		s.err = err
	}
	s.mu.Unlock()
}

// Wait blocks the host until every enqueued launch has completed, then
// returns the stream's sticky error status.
func (s *Stream) Wait() error {
	s.pending.Wait()
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// Close shuts the stream down. All enqueued work must have completed; do not
// enqueue after Close.
func (s *Stream) Close() {
	s.pending.Wait()
	close(s.tasks)
}
