// Package adminserver implements the line-oriented admin console.
//
// A client connects over TCP, receives a greeting line, and sends one
// command per line:
//
//	help [topic]      command list or topic help
//	list | slist      plain or secure routes as "host: target"
//	reconfig          reload the configuration file
//	reroute HOST      evict the plain handler for HOST
//	sreroute HOST     evict the secure handler for HOST
//	ressl             reload the TLS key pair
//	uncache ID        evict a unit and everything depending on it
//	quit              close the session
//
// The console has no authentication. Bind it to loopback or restrict peers
// with the allow list.
package adminserver
