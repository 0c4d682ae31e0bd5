// Package galaxy holds the baryonic data model: baryon components, galaxies,
// subhalos, halos, and the per-run forest arena that resolves descendant
// references between snapshots.
//
// A Subhalo owns its galaxies. Ownership moves between subhalos only through
// [Subhalo.TransferGalaxiesTo]; galaxies are never copied or shared.
package galaxy
