// Package main provides the entry point for hostgate-cli.
//
// hostgate-cli drives a running server through its admin console, either
// one command per invocation or interactively with "shell".
//
// Usage:
//
//	hostgate-cli list
//	hostgate-cli --admin 127.0.0.1:8090 reroute example.com
//	hostgate-cli shell
package main
