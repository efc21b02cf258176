// Package dynamo provides the numeric primitives behind the joint simulation
// engine.
//
//   - [State]: flat vector of joint positions followed by joint velocities
//   - [System]: ODE right-hand side (dX/dt = f(X, u, t))
//   - [Integrator]: one numerical step of a [System]
//
// # Thread Safety
//
// Integrators keep scratch buffers and are NOT safe for concurrent use.
package dynamo
