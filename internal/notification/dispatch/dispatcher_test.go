package dispatch

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"msomi-backend/pkg/fcm"
)

// fakeProvider records each chunk and answers per-token results via the
// respond callback.
type fakeProvider struct {
	chunks  [][]string
	respond func(token string) fcm.SendResult
	err     error
}

func (p *fakeProvider) SendMulticast(ctx context.Context, tokens []string, notification fcm.NotificationData) ([]fcm.SendResult, error) {
	copied := make([]string, len(tokens))
	copy(copied, tokens)
	p.chunks = append(p.chunks, copied)

	if p.err != nil {
		return nil, p.err
	}
	results := make([]fcm.SendResult, len(tokens))
	for i, token := range tokens {
		results[i] = p.respond(token)
	}
	return results, nil
}

type recordingReporter struct {
	tokens []string
}

func (r *recordingReporter) Report(token string) {
	r.tokens = append(r.tokens, token)
}

func makeTokens(n int) []string {
	tokens := make([]string, n)
	for i := range tokens {
		tokens[i] = fmt.Sprintf("tok-%04d", i)
	}
	return tokens
}

func allSuccess(token string) fcm.SendResult {
	return fcm.SendResult{Success: true}
}

func TestFanoutChunksLargeAudience(t *testing.T) {
	provider := &fakeProvider{respond: allSuccess}
	d := NewDispatcher(provider, nil, 500, time.Second)

	outcome := d.Fanout(context.Background(), makeTokens(1200), fcm.NotificationData{Title: "t"})

	require.Equal(t, 1200, outcome.Recipients)
	require.Equal(t, 1200, outcome.Success)
	require.Zero(t, outcome.Failure)

	require.Len(t, provider.chunks, 3)
	require.Len(t, provider.chunks[0], 500)
	require.Len(t, provider.chunks[1], 500)
	require.Len(t, provider.chunks[2], 200)

	// Chunks partition the input: every token sent exactly once, in order.
	var flat []string
	for _, chunk := range provider.chunks {
		flat = append(flat, chunk...)
	}
	require.Equal(t, makeTokens(1200), flat)
}

func TestFanoutSingleChunkForSmallAudience(t *testing.T) {
	provider := &fakeProvider{respond: allSuccess}
	d := NewDispatcher(provider, nil, 500, time.Second)

	outcome := d.Fanout(context.Background(), makeTokens(10), fcm.NotificationData{})

	require.Len(t, provider.chunks, 1)
	require.Equal(t, 10, outcome.Success)
}

func TestFanoutReportsInvalidTokens(t *testing.T) {
	provider := &fakeProvider{
		respond: func(token string) fcm.SendResult {
			switch {
			case strings.HasSuffix(token, "0003"):
				return fcm.SendResult{Invalid: true, Err: errors.New("registration-token-not-registered")}
			case strings.HasSuffix(token, "0007"):
				return fcm.SendResult{Invalid: true, Err: errors.New("invalid-argument")}
			default:
				return fcm.SendResult{Success: true}
			}
		},
	}
	reporter := &recordingReporter{}
	d := NewDispatcher(provider, reporter, 500, time.Second)

	outcome := d.Fanout(context.Background(), makeTokens(10), fcm.NotificationData{})

	require.Equal(t, 10, outcome.Recipients)
	require.Equal(t, 8, outcome.Success)
	require.Equal(t, 2, outcome.Failure)
	require.Equal(t, []string{"tok-0003", "tok-0007"}, reporter.tokens)
}

func TestFanoutTransientFailureNotReportedInvalid(t *testing.T) {
	provider := &fakeProvider{
		respond: func(token string) fcm.SendResult {
			if token == "tok-0001" {
				return fcm.SendResult{Err: errors.New("unavailable")}
			}
			return fcm.SendResult{Success: true}
		},
	}
	reporter := &recordingReporter{}
	d := NewDispatcher(provider, reporter, 500, time.Second)

	outcome := d.Fanout(context.Background(), makeTokens(3), fcm.NotificationData{})

	require.Equal(t, 2, outcome.Success)
	require.Equal(t, 1, outcome.Failure)
	require.Empty(t, reporter.tokens)
}

func TestFanoutWholeChunkError(t *testing.T) {
	provider := &fakeProvider{err: errors.New("network down")}
	reporter := &recordingReporter{}
	d := NewDispatcher(provider, reporter, 500, time.Second)

	outcome := d.Fanout(context.Background(), makeTokens(700), fcm.NotificationData{})

	require.Equal(t, 700, outcome.Recipients)
	require.Zero(t, outcome.Success)
	require.Equal(t, 700, outcome.Failure)
	// Unknown delivery state must not trigger invalidation.
	require.Empty(t, reporter.tokens)
}

func TestFanoutEmptyTokenList(t *testing.T) {
	provider := &fakeProvider{respond: allSuccess}
	d := NewDispatcher(provider, nil, 500, time.Second)

	outcome := d.Fanout(context.Background(), nil, fcm.NotificationData{})

	require.Zero(t, outcome.Recipients)
	require.Empty(t, provider.chunks)
}

func TestNewDispatcherCapsChunkSize(t *testing.T) {
	provider := &fakeProvider{respond: allSuccess}
	d := NewDispatcher(provider, nil, 10000, time.Second)

	d.Fanout(context.Background(), makeTokens(600), fcm.NotificationData{})

	require.Len(t, provider.chunks, 2)
	require.Len(t, provider.chunks[0], fcm.MulticastLimit)
}
