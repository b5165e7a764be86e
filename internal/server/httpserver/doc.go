// Package httpserver runs the plain and secure front listeners.
//
// Every request is dispatched by hostname: the Host header, minus any port,
// selects a route target, and the handler loaded for that target answers the
// request. Hosts with no route and no default route get an empty 404.
package httpserver
