package quant

import "gonum.org/v1/gonum/stat"

// Window is a fixed-capacity FIFO of samples. Pushing into a full window evicts the oldest sample.
// It is not safe for concurrent use; each stage owns its windows.
type Window struct {
	buf   []float64
	start int
	n     int
}

// NewWindow creates a window holding at most capacity samples.
func NewWindow(capacity int) *Window {
	if capacity < 1 {
		capacity = 1
	}
	return &Window{buf: make([]float64, capacity)}
}

// Push appends v, evicting the oldest sample when full.
func (w *Window) Push(v float64) {
	c := len(w.buf)
	if w.n < c {
		w.buf[(w.start+w.n)%c] = v
		w.n++
		return
	}
	w.buf[w.start] = v
	w.start = (w.start + 1) % c
}

func (w *Window) Len() int { return w.n }

func (w *Window) Full() bool { return w.n == len(w.buf) }

// Values returns the samples oldest first.
func (w *Window) Values() []float64 {
	out := make([]float64, w.n)
	for i := 0; i < w.n; i++ {
		out[i] = w.buf[(w.start+i)%len(w.buf)]
	}
	return out
}

// Mean returns the arithmetic mean; ok is false for an empty window.
func (w *Window) Mean() (float64, bool) {
	if w.n == 0 {
		return 0, false
	}
	return stat.Mean(w.Values(), nil), true
}

// MeanStdDev returns the mean and the unbiased (n-1) standard deviation; ok needs two samples.
func (w *Window) MeanStdDev() (mean, std float64, ok bool) {
	if w.n < 2 {
		return 0, 0, false
	}
	mean, std = stat.MeanStdDev(w.Values(), nil)
	return mean, std, true
}

// ZScore scores x against mean and std. A flat window scores 0.
func ZScore(x, mean, std float64) float64 {
	if std == 0 {
		return 0
	}
	return (x - mean) / std
}
