package worldcfg

import (
	"sync"

	"voxelworlds.ai/internal/async"
)

// fileWriter orders the background writes of one settings file and lets a
// reader wait for every write issued before it.
type fileWriter struct {
	mu      sync.Mutex
	idle    *sync.Cond
	pending int

	// write is held while the file is written or read back. A save takes
	// its snapshot after acquiring it, so the last one to run writes the
	// newest state.
	write sync.Mutex
}

// start counts the write as pending before returning, so a read issued
// after start returns waits for it.
func (w *fileWriter) start(fn func() (Written, error)) *async.Future[Written] {
	w.mu.Lock()
	w.pending++
	w.mu.Unlock()
	return async.Run(func() (Written, error) {
		defer w.finish()
		w.write.Lock()
		defer w.write.Unlock()
		return fn()
	})
}

func (w *fileWriter) finish() {
	w.mu.Lock()
	w.pending--
	if w.pending == 0 && w.idle != nil {
		w.idle.Broadcast()
	}
	w.mu.Unlock()
}

// read runs fn once all issued writes have reached the disk. Writes started
// while fn runs wait for it.
func (w *fileWriter) read(fn func() error) error {
	w.mu.Lock()
	if w.idle == nil {
		w.idle = sync.NewCond(&w.mu)
	}
	for w.pending > 0 {
		w.idle.Wait()
	}
	w.mu.Unlock()

	w.write.Lock()
	defer w.write.Unlock()
	return fn()
}
