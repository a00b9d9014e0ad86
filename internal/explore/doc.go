// Package explore drives a program built against the chess runtime
// through every single-preemption interleaving.
//
// The contract with the program is the state file:
//
//  1. The driver writes "0/0" and runs the program once. The runtime
//     counts synchronization points and leaves "0/<total>".
//  2. For every index i in 1..total the driver writes "i/total" and runs
//     the program again. The runtime forces a context switch at point i.
//  3. Each run is classified as clean, crash (non-zero exit or signal),
//     hang (timeout) or error (could not start). The report lists the
//     indices of crashing and hanging runs.
//
// A state file that the program leaves corrupt aborts the exploration:
// later runs could not be attributed to an index.
//
// With Parallel > 1 the replay runs are spread over worker processes,
// each with a private state file in a per-session directory.
package explore
