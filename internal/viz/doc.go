// Package viz renders runs in the terminal.
//
//   - [PlotSeries]: asciigraph plots of accounting series
//   - [RenderResult]: styled summary of a finished run
//   - [LiveModel]: Bubble Tea view fed snapshot by snapshot while a run
//     is in progress
//
// # Key Bindings
//
//	Tab   - Cycle the plotted series
//	L     - Toggle log scale
//	?     - Show help overlay
//	Q     - Quit
package viz
