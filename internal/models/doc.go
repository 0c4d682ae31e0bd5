// Package models implements the physical models that evolve the baryons of a
// galaxy and its subhalo over one time step.
//
// A model maps galaxy and subhalo properties into an ODE state vector,
// integrates the coupled rate equations for star formation, gas cooling and
// stellar feedback, and writes the result back while enforcing physical
// invariants. The state vector of [BasicPhysicalModel] has [NumEquations]
// entries laid out as the Idx constants.
package models
