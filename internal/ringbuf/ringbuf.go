// Package ringbuf provides a fixed-capacity rolling window of float64
// samples. The monitor uses it to keep the most recent N prices for
// rolling VaR without growing memory.
package ringbuf

// Window is a circular buffer that overwrites its oldest sample once
// full. Not safe for concurrent use; the monitor owns one per asset.
type Window struct {
	buf   []float64
	head  int
	count int
}

// NewWindow creates a window holding up to capacity samples.
// Minimum capacity is 2.
func NewWindow(capacity int) *Window {
	if capacity < 2 {
		capacity = 2
	}
	return &Window{buf: make([]float64, capacity)}
}

// Push appends a sample, evicting the oldest when full.
func (w *Window) Push(v float64) {
	w.buf[w.head] = v
	w.head = (w.head + 1) % len(w.buf)
	if w.count < len(w.buf) {
		w.count++
	}
}

// Len returns the number of samples currently held.
func (w *Window) Len() int { return w.count }

// Cap returns the window capacity.
func (w *Window) Cap() int { return len(w.buf) }

// Full reports whether the window has reached capacity.
func (w *Window) Full() bool { return w.count == len(w.buf) }

// Values returns the samples in chronological order, oldest first.
func (w *Window) Values() []float64 {
	out := make([]float64, 0, w.count)
	start := w.head - w.count
	if start < 0 {
		start += len(w.buf)
	}
	for i := 0; i < w.count; i++ {
		out = append(out, w.buf[(start+i)%len(w.buf)])
	}
	return out
}
