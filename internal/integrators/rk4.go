package integrators

import "github.com/san-kum/jointlink/internal/dynamo"

// RK4 is the classic fourth-order Runge-Kutta stepper. Stage buffers are
// reused between calls, so one RK4 must not be shared across goroutines.
type RK4 struct {
	k       [4]dynamo.State
	scratch dynamo.State
}

func NewRK4() *RK4 {
	return &RK4{}
}

func (r *RK4) resize(n int) {
	if len(r.scratch) == n {
		return
	}
	for i := range r.k {
		r.k[i] = make(dynamo.State, n)
	}
	r.scratch = make(dynamo.State, n)
}

// stage evaluates the system at x + h*k and stores the derivative in dst.
func (r *RK4) stage(dst dynamo.State, sys dynamo.System, x, k dynamo.State, u dynamo.Control, t, h float64) {
	for i := range x {
		r.scratch[i] = x[i] + h*k[i]
	}
	copy(dst, sys.Derive(r.scratch, u, t))
}

func (r *RK4) Step(sys dynamo.System, x dynamo.State, u dynamo.Control, t, dt float64) dynamo.State {
	r.resize(len(x))
	half := 0.5 * dt

	copy(r.k[0], sys.Derive(x, u, t))
	r.stage(r.k[1], sys, x, r.k[0], u, t+half, half)
	r.stage(r.k[2], sys, x, r.k[1], u, t+half, half)
	r.stage(r.k[3], sys, x, r.k[2], u, t+dt, dt)

	out := make(dynamo.State, len(x))
	w := dt / 6.0
	for i := range x {
		out[i] = x[i] + w*(r.k[0][i]+2*r.k[1][i]+2*r.k[2][i]+r.k[3][i])
	}
	return out
}
