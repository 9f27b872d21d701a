// Package analysis characterizes recorded trajectories.
//
// Recorded runs are sampled unevenly: steps are shortened to land on
// time events and event steps are always kept. The spectral tools here
// resample onto a uniform grid before transforming.
//
//   - [Describe]: range, mean and spread of one state component
//   - [DominantPeriod]: period of the strongest spectral peak
//   - [CrossingPeriod]: mean period between upward crossings of a level
//
// A thermostat cycling in its band shows up as a clear peak:
//
//	report, err := analysis.Analyze(result.Times, result.States, 0)
//	fmt.Println(report.DominantPeriod, report.CrossingPeriod)
package analysis
