// Package rpc implements the request/response channel between the controller
// and a tool environment process.
//
// The environment process runs a Server. It binds a loopback listener on an
// ephemeral port, announces the port with a single handshake line on its
// standard output and accepts exactly one connection. The controller connects
// a Client to that port and issues calls of the form module.function(args).
//
// Every frame on the wire is a 4-byte big-endian length followed by one JSON
// object carrying an "action" field:
//
//	execute             module, function, args   controller -> environment
//	exit                                         controller -> environment
//	execution finished  result                   environment -> controller
//	error               exception, traceback     environment -> controller
//	exited                                       environment -> controller
//
// There is at most one request in flight per channel. The environment never
// sends a frame that was not asked for.
package rpc
