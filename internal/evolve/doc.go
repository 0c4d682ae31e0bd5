// Package evolve moves galaxies along the merger tree between snapshots and
// keeps the global baryon budget of a run.
package evolve
