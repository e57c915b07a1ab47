package detector

// rollingWindow is a fixed-capacity ring over the most recent observations.
type rollingWindow struct {
	size   int
	values []float64
	next   int
	count  int
}

func newRollingWindow(size int) *rollingWindow {
	return &rollingWindow{
		size:   size,
		values: make([]float64, size),
	}
}

func (w *rollingWindow) Add(value float64) {
	w.values[w.next] = value
	w.next = (w.next + 1) % w.size
	if w.count < w.size {
		w.count++
	}
}

// Snapshot returns the window contents in insertion order, oldest first.
func (w *rollingWindow) Snapshot() []float64 {
	out := make([]float64, 0, w.count)
	if w.count < w.size {
		return append(out, w.values[:w.count]...)
	}
	out = append(out, w.values[w.next:]...)
	return append(out, w.values[:w.next]...)
}

func (w *rollingWindow) Len() int { return w.count }
