// Package runner executes harvest jobs for one invocation of the CLI.
//
// Jobs run sequentially unless a parallelism above one is configured, in
// which case they share an errgroup limited to that many goroutines. Every
// run gets a run_id that is attached to all log lines it produces.
package runner
