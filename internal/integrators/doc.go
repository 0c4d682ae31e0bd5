// Package integrators provides the adaptive ODE solver used to advance galaxy
// state vectors between snapshots.
package integrators
