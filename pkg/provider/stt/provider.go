// Package stt defines the Client interface for the speech-to-text inference
// service.
//
// The model server is an opaque RPC endpoint: it receives decoded float
// samples and returns text. Implementations wrap a concrete transport (see
// the remote subpackage for the HTTP client) and must be safe for concurrent
// use; the retranscription pipeline issues bounded-fan-out requests from
// multiple goroutines.
package stt

import "context"

// Client is the abstraction over the transcription service.
//
// Transcribe must propagate context cancellation promptly and must not retry
// internally — the callers own the retry policy (the realtime adapter drops
// the chunk, retranscription surfaces the failure per segment).
type Client interface {
	// Transcribe sends one batch of audio and waits for the result. A reply
	// with Success == false is returned with a nil error; transport failures
	// return an error wrapping fault.ErrServiceUnavailable.
	Transcribe(ctx context.Context, req Request) (Response, error)
}
