// Package events fans job and cleanup notifications out to connected clients.
//
// Hub keeps one buffered channel per client id. Broadcast never blocks: a
// client whose buffer is full is disconnected and must reconnect. Handler
// exposes the hub as a Server-Sent Events stream.
package events
