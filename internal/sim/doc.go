// Package sim is a small joint-space simulation engine used as the consumer
// side's downstream collaborator.
//
// Each joint contributes Dof() position coordinates and as many velocity
// coordinates. The state vector is laid out as all positions followed by all
// velocities. Between external writes the engine integrates damped free
// motion and holds limited joints inside their range.
//
// External writers only address the first scalar degree of freedom of a
// joint ([Engine.ApplyJoint]). For ball and free joints the remaining
// coordinates keep evolving on their own.
package sim
