// Package throttle gates admission of model call attempts. A policy hands out
// a release func paired with every successful Acquire; the executor releases
// on every exit path so a slot is never leaked to a failed, panicked or
// cancelled attempt. The bounded policy queues excess requests in FIFO order
// and a wait cancelled mid-queue returns without consuming a slot.
package throttle
