package tracker

import "sync"

// axisFilter is a 1D constant-velocity Kalman filter used to smooth one
// coordinate of a track's box center, adapted from the donor example
// pack's face/body landmark smoother (a 1D filter per coordinate axis) to
// track bounding-box centers instead of facial landmarks.
type axisFilter struct {
	mu          sync.Mutex
	x           float64
	p           float64
	q           float64
	r           float64
	initialized bool
}

func newAxisFilter() *axisFilter {
	return &axisFilter{p: 1.0, q: 0.1, r: 0.35}
}

// Update folds in a new measurement and returns the filtered estimate.
func (f *axisFilter) Update(measurement float64) float64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.initialized {
		f.x = measurement
		f.initialized = true
		return measurement
	}
	pPred := f.p + f.q
	k := pPred / (pPred + f.r)
	f.x = f.x + k*(measurement-f.x)
	f.p = (1 - k) * pPred
	return f.x
}

// State returns the current filtered estimate without a new measurement.
func (f *axisFilter) State() float64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.x
}

// centerFilter smooths a track's box center across both axes and derives a
// constant-velocity prediction for the next frame.
type centerFilter struct {
	fx, fy       *axisFilter
	lastX, lastY float64
	velX, velY   float64
	have         bool
}

func newCenterFilter() *centerFilter {
	return &centerFilter{fx: newAxisFilter(), fy: newAxisFilter()}
}

// Observe folds in a matched detection's center and updates the velocity
// estimate.
func (c *centerFilter) Observe(x, y float64) {
	fx, fy := c.fx.Update(x), c.fy.Update(y)
	if c.have {
		c.velX, c.velY = fx-c.lastX, fy-c.lastY
	}
	c.lastX, c.lastY = fx, fy
	c.have = true
}

// Predict extrapolates one step ahead using the last observed velocity
// (identity prediction if no velocity has been established yet).
func (c *centerFilter) Predict() (x, y float64) {
	return c.lastX + c.velX, c.lastY + c.velY
}
