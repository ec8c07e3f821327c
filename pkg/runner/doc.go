// Package runner implements the process plumbing of distributed sweeps: the
// worker serve loop on one side and the manager's worker pool on the other.
//
// Workers talk to the manager over stdin/stdout using the protocol package.
// A worker announces itself with READY, then answers JOB messages with
// RESULT messages until it receives STOP or its input closes. The pool
// spawns workers through a Spawner, keeps one reader goroutine per worker,
// and exposes a non-blocking receive so the scheduling loop can poll.
package runner
