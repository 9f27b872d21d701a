package integrators

import "github.com/san-kum/hybridsim/internal/dynamo"

type RK4 struct {
	k1, k2, k3, k4 dynamo.State
	scratch        dynamo.State
}

func NewRK4() *RK4 {
	return &RK4{}
}

func (r *RK4) ensureScratch(n int) {
	if len(r.k1) != n {
		r.k1 = make(dynamo.State, n)
		r.k2 = make(dynamo.State, n)
		r.k3 = make(dynamo.State, n)
		r.k4 = make(dynamo.State, n)
		r.scratch = make(dynamo.State, n)
	}
}

// stage evaluates the derivative at x + h·k into dst.
func (r *RK4) stage(dst dynamo.State, dyn dynamo.System, x, k dynamo.State, h, t float64) error {
	for i := range x {
		r.scratch[i] = x[i] + h*k[i]
	}
	dx, err := dyn.Derive(r.scratch, t)
	if err != nil {
		return err
	}
	copy(dst, dx)
	return nil
}

func (r *RK4) Step(dyn dynamo.System, x dynamo.State, t, dt float64) (dynamo.State, error) {
	n := len(x)
	r.ensureScratch(n)

	k1, err := dyn.Derive(x, t)
	if err != nil {
		return nil, err
	}
	copy(r.k1, k1)

	if err := r.stage(r.k2, dyn, x, r.k1, dt*0.5, t+dt*0.5); err != nil {
		return nil, err
	}
	if err := r.stage(r.k3, dyn, x, r.k2, dt*0.5, t+dt*0.5); err != nil {
		return nil, err
	}
	if err := r.stage(r.k4, dyn, x, r.k3, dt, t+dt); err != nil {
		return nil, err
	}

	result := make(dynamo.State, n)
	dt6 := dt / 6.0
	for i := 0; i < n; i++ {
		result[i] = x[i] + dt6*(r.k1[i]+2*r.k2[i]+2*r.k3[i]+r.k4[i])
	}

	return result, nil
}
