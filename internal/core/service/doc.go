// Package service holds the Controller, the aggregate that owns the live
// configuration, the routing snapshot, the handler cache, the TLS material
// and the listeners.
//
// The front listeners read routing state through the Controller; the admin
// console and the ops listener call its operations. Configuration and
// routing tables are swapped together as one immutable snapshot so readers
// never see a table built from a different configuration.
package service
