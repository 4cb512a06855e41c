package events

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/yanqian/batch-summarizer/internal/domain/batchsum"
)

func TestImmediatePublisherCallsHandler(t *testing.T) {
	t.Parallel()
	var got []batchsum.BatchEvent
	p := NewImmediatePublisher(func(_ context.Context, event batchsum.BatchEvent) {
		got = append(got, event)
	})

	event := batchsum.BatchEvent{RunID: uuid.New(), BatchIndex: 2, Records: 32, Failed: 1}
	require.NoError(t, p.Publish(context.Background(), event))
	require.Equal(t, []batchsum.BatchEvent{event}, got)
}

func TestImmediatePublisherNilHandler(t *testing.T) {
	t.Parallel()
	require.NoError(t, NewImmediatePublisher(nil).Publish(context.Background(), batchsum.BatchEvent{}))
}

func TestEventEnvelopeRoundTrip(t *testing.T) {
	t.Parallel()
	event := batchsum.BatchEvent{
		RunID:       uuid.New(),
		BatchIndex:  4,
		Records:     32,
		Failed:      3,
		CleanPath:   "data/output/clean_dataset.csv",
		OutputPath:  "data/output/output_dataset.csv",
		CompletedAt: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC),
	}
	raw, err := encodeEvent(event)
	require.NoError(t, err)
	require.Contains(t, raw, `"type":"batch.completed"`)

	decoded, err := DecodeEvent(raw)
	require.NoError(t, err)
	require.Equal(t, event, decoded)

	_, err = DecodeEvent("{")
	require.ErrorContains(t, err, "decode batch event")
}
