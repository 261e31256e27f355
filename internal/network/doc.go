// Package network contains the UDP plumbing of the service: the listening server that dispatches
// each inbound datagram to a handler under a concurrency bound, and the client that forwards a
// query to the upstream resolver over a transient socket with an enforced timeout.
package network
