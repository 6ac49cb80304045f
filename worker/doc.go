// Package worker runs submitted job instances on a bounded set of
// goroutines. It is the in-process execution slot for hosts that fire many
// instances at once: callers Submit, the pool executes through the engine
// and delivers each result on its own channel.
package worker
