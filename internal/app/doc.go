// Package app wires configuration, the feed client, the scheduler, the query
// engine and the HTTP surfaces into one running process.
package app
