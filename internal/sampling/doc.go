// Package sampling negotiates capture parameters with the attached device.
//
// [RateSelector] mirrors the device's list of legal sample rates.
// [DurationSelector] derives the ladder of selectable capture durations
// (time per division in Dso mode) from the device's memory depth, the
// selected rate and its stream/RLE capabilities. [Committer] pushes the
// selections back to the device as sample rate, sample-count limit, RLE
// flag and time base writes.
//
// Both selectors rebuild their entries from scratch whenever the rate,
// mode or device changes and never mutate entries in place. Rebuilds are
// wrapped in a [Guard] so that the selection changes they make do not
// re-enter the refresh path.
package sampling
