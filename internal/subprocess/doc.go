// Package subprocess implements the process bridge: it launches one child
// process, exposes the child's stdin and stdout as a duplex channel, watches
// for the child's exit and shuts it down on request.
//
// A Bridge owns at most one child for its whole life. Activate starts the
// child and returns its Handle, which implements config.Channel. Shutdown
// closes both pipe ends, asks the child to terminate, and kills it when it
// has not exited within the grace period.
//
// Every handle has a waiter goroutine blocked on the child's exit. When the
// child ends without a shutdown request the waiter releases the pipes and
// reports the exit through the OnExit callback. A single atomic flag decides
// whether Shutdown or the waiter releases the pipes, so exactly one of them
// does.
package subprocess
