// Package feedback implements the stellar feedback outflow laws.
//
// A [Feedback] turns a star formation rate and the circular velocities of a
// galaxy and its subhalo into mass loading factors (reheating beta1 and
// ejection beta2) and their angular momentum counterparts. Two strategies are
// available and chosen once at construction:
//
//   - [Parametrized]: the six named laws of [Model], with angular momentum
//     loading
//   - [PowerLaw]: a single analytic power law of the circular velocity that
//     only models mass loading
package feedback
