package domain

// ObservationWindow is a read-only view over Rows() consecutive feature rows.
// The backing slice is shared with the series it was cut from and is never written.
type ObservationWindow struct {
	data []float64
	rows int
	cols int
}

// NewObservationWindow wraps row-major data. len(data) must equal rows*cols.
func NewObservationWindow(data []float64, rows, cols int) ObservationWindow {
	if rows < 0 || cols < 0 || len(data) != rows*cols {
		panic("domain: observation window shape does not match data length")
	}
	return ObservationWindow{data: data[:len(data):len(data)], rows: rows, cols: cols}
}

// Rows returns the number of timesteps in the window.
func (w ObservationWindow) Rows() int { return w.rows }

// Cols returns the number of features per timestep.
func (w ObservationWindow) Cols() int { return w.cols }

// Size returns Rows()*Cols().
func (w ObservationWindow) Size() int { return len(w.data) }

// IsZero reports whether w is the zero window.
func (w ObservationWindow) IsZero() bool { return w.data == nil }

// At returns the feature j of timestep i.
func (w ObservationWindow) At(i, j int) float64 {
	if i < 0 || i >= w.rows || j < 0 || j >= w.cols {
		panic("domain: observation window index out of range")
	}
	return w.data[i*w.cols+j]
}

// Row returns a copy of timestep i.
func (w ObservationWindow) Row(i int) []float64 {
	if i < 0 || i >= w.rows {
		panic("domain: observation window row out of range")
	}
	out := make([]float64, w.cols)
	copy(out, w.data[i*w.cols:(i+1)*w.cols])
	return out
}

// AppendTo appends the flattened window to dst and returns the extended slice.
func (w ObservationWindow) AppendTo(dst []float64) []float64 {
	return append(dst, w.data...)
}
