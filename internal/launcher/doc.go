// Package launcher runs shell command sequences as child processes.
//
// Commands are written to a temporary script in which every step is guarded
// by an exit-code check, so the first failing step aborts the script. The
// child runs in its own process group (Unix) so that KillTree can take down
// every helper process it started. Launch additionally waits for the
// "Listening port <N>" handshake and connects an rpc.Client to the child.
package launcher
