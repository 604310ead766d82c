package dispatch

import (
	"context"
	"log"
	"time"

	"msomi-backend/pkg/fcm"
)

// Provider is the narrow push-delivery contract. Responses map 1:1 onto the
// submitted tokens in input order. *fcm.Client satisfies it.
type Provider interface {
	SendMulticast(ctx context.Context, tokens []string, notification fcm.NotificationData) ([]fcm.SendResult, error)
}

// InvalidReporter receives tokens the provider permanently rejected.
// Report must be non-blocking; the Collector implements it.
type InvalidReporter interface {
	Report(token string)
}

// Outcome aggregates one fan-out's per-token results across all chunks.
type Outcome struct {
	Recipients int
	Success    int
	Failure    int
}

// Dispatcher splits a token list into provider-sized chunks and delivers
// them sequentially, classifying each per-token response.
type Dispatcher struct {
	provider    Provider
	invalid     InvalidReporter
	chunkSize   int
	callTimeout time.Duration
}

// NewDispatcher creates a dispatcher. chunkSize defaults to the provider's
// multicast limit; callTimeout bounds each provider call.
func NewDispatcher(provider Provider, invalid InvalidReporter, chunkSize int, callTimeout time.Duration) *Dispatcher {
	if chunkSize <= 0 || chunkSize > fcm.MulticastLimit {
		chunkSize = fcm.MulticastLimit
	}
	if callTimeout <= 0 {
		callTimeout = 30 * time.Second
	}
	return &Dispatcher{
		provider:    provider,
		invalid:     invalid,
		chunkSize:   chunkSize,
		callTimeout: callTimeout,
	}
}

// Fanout delivers one message to every token, in ceil(len/chunkSize)
// sequential provider calls. Chunks partition the input disjointly, so no
// token is dispatched twice within one job. A whole-chunk error (network
// failure, timeout) counts every token in that chunk as failed without
// forwarding any of them for invalidation: their true state is unknown.
func (d *Dispatcher) Fanout(ctx context.Context, tokens []string, notification fcm.NotificationData) Outcome {
	outcome := Outcome{Recipients: len(tokens)}

	for start := 0; start < len(tokens); start += d.chunkSize {
		end := start + d.chunkSize
		if end > len(tokens) {
			end = len(tokens)
		}
		chunk := tokens[start:end]

		callCtx, cancel := context.WithTimeout(ctx, d.callTimeout)
		results, err := d.provider.SendMulticast(callCtx, chunk, notification)
		cancel()

		if err != nil {
			outcome.Failure += len(chunk)
			log.Printf("[Dispatcher] Chunk of %d tokens failed: %v", len(chunk), err)
			continue
		}

		for i, result := range results {
			if result.Success {
				outcome.Success++
				continue
			}
			outcome.Failure++
			if result.Invalid && d.invalid != nil {
				d.invalid.Report(chunk[i])
			}
		}
	}

	return outcome
}
