// Package probe drives a slot-machine spin endpoint.
//
// A Client issues one spin and classifies the outcome; a Runner repeats that
// sequentially, collecting Observations and stopping on the first transport
// failure. Summarize turns the collected set into a SummaryReport.
package probe
