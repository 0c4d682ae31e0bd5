// Package physics provides the rate laws and constants the galaxy evolution
// model consumes as collaborators:
//
//   - [StarFormation]: star formation rate and gas-to-star angular momentum
//     transfer rate of a gas reservoir
//   - [GasCooling]: mass flow from the cooling halo reservoir onto the disk
//   - [RecyclingParameters] and [GasCoolingParameters]: model constants
//
// The reference laws ([ConstantEfficiency], [ReservoirCooling]) are simple
// and deterministic. Any law honouring the interfaces can replace them.
//
// Units follow the merger trees: masses in Msun/h, radii in Mpc/h,
// velocities in km/s, times in Gyr.
package physics
