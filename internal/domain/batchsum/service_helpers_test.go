package batchsum

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/yanqian/batch-summarizer/pkg/metrics"
	"github.com/yanqian/batch-summarizer/pkg/util"
)

type fakeSource struct {
	rows      []RawRecord
	chunkSize int
	offset    int
	index     int
	nextCalls int
	closed    bool
}

func (f *fakeSource) Next(ctx context.Context) (Batch, error) {
	f.nextCalls++
	if err := ctx.Err(); err != nil {
		return Batch{}, err
	}
	if f.offset >= len(f.rows) {
		return Batch{}, io.EOF
	}
	end := f.offset + f.chunkSize
	if end > len(f.rows) {
		end = len(f.rows)
	}
	batch := Batch{Index: f.index, Rows: f.rows[f.offset:end]}
	f.offset = end
	f.index++
	return batch, nil
}

func (f *fakeSource) Close() error {
	f.closed = true
	return nil
}

type fakeOpener struct {
	rows   []RawRecord
	err    error
	source *fakeSource
}

func (f *fakeOpener) Open(_ string, chunkSize int) (BatchSource, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.source = &fakeSource{rows: f.rows, chunkSize: chunkSize}
	return f.source, nil
}

// fakeSink keeps every write call separately so tests can check header
// discipline per call.
type fakeSink struct {
	name    string
	columns []string
	state   SinkState
	writes  [][][]string
	err     error
}

func (f *fakeSink) Append(_ context.Context, rows [][]string) error {
	if f.err != nil {
		return f.err
	}
	call := make([][]string, 0, len(rows)+1)
	switch f.state {
	case SinkUninitialized:
		call = append(call, f.columns)
		f.state = SinkHeaderWritten
	case SinkHeaderWritten:
		f.state = SinkAppending
	}
	call = append(call, rows...)
	f.writes = append(f.writes, call)
	return nil
}

func (f *fakeSink) State() SinkState { return f.state }
func (f *fakeSink) Path() string     { return "mem://" + f.name }
func (f *fakeSink) Close() error     { return nil }

// lines flattens all write calls into file order.
func (f *fakeSink) lines() [][]string {
	var out [][]string
	for _, call := range f.writes {
		out = append(out, call...)
	}
	return out
}

type fakeSinkFactory struct {
	sinks map[string]*fakeSink
}

func newFakeSinkFactory() *fakeSinkFactory {
	return &fakeSinkFactory{sinks: map[string]*fakeSink{}}
}

func (f *fakeSinkFactory) NewSink(name string, columns []string) TableSink {
	sink := &fakeSink{name: name, columns: columns, state: SinkUninitialized}
	f.sinks[name] = sink
	return sink
}

type summarizeFunc func(ctx context.Context, prompt string) (string, error)

type fakeSummarizer struct {
	mu      sync.Mutex
	fn      summarizeFunc
	prompts []string
}

func (f *fakeSummarizer) Summarize(ctx context.Context, prompt string) (string, error) {
	f.mu.Lock()
	f.prompts = append(f.prompts, prompt)
	f.mu.Unlock()
	return f.fn(ctx, prompt)
}

type fakeLedger struct {
	runs        []Run
	checkpoints []BatchCheckpoint
	finished    RunStatus
	report      RunReport
	err         error
}

func (f *fakeLedger) StartRun(_ context.Context, run Run) error {
	f.runs = append(f.runs, run)
	return f.err
}

func (f *fakeLedger) RecordBatch(_ context.Context, cp BatchCheckpoint) error {
	f.checkpoints = append(f.checkpoints, cp)
	return f.err
}

func (f *fakeLedger) FinishRun(_ context.Context, _ uuid.UUID, status RunStatus, report RunReport) error {
	f.finished = status
	f.report = report
	return f.err
}

type fakePublisher struct {
	events []BatchEvent
	err    error
}

func (f *fakePublisher) Publish(_ context.Context, event BatchEvent) error {
	f.events = append(f.events, event)
	return f.err
}

type harness struct {
	svc        *service
	opener     *fakeOpener
	summarizer *fakeSummarizer
	sinks      *fakeSinkFactory
	ledger     *fakeLedger
	events     *fakePublisher
}

func newHarness(t *testing.T, cfg Config, rows []RawRecord, fn summarizeFunc) *harness {
	t.Helper()
	h := &harness{
		opener:     &fakeOpener{rows: rows},
		summarizer: &fakeSummarizer{fn: fn},
		sinks:      newFakeSinkFactory(),
		ledger:     &fakeLedger{},
		events:     &fakePublisher{},
	}
	clock := util.FixedClock(time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC))
	h.svc = newService(cfg, h.opener, h.summarizer, h.sinks, h.ledger, h.events, metrics.NewPipeline(), clock, discardLogger())
	return h
}

func (h *harness) clean() *fakeSink  { return h.sinks.sinks["clean.csv"] }
func (h *harness) output() *fakeSink { return h.sinks.sinks["output.csv"] }

func testConfig() Config {
	return Config{
		TitleColumn:    "title",
		BodyColumn:     "abstract",
		SummaryColumn:  "summary",
		ChunkSize:      2,
		MaxChunkCount:  10,
		PromptTemplate: "---{title}---\n```{text}```",
		CleanFile:      "clean.csv",
		OutputFile:     "output.csv",
	}
}

func records(pairs ...string) []RawRecord {
	out := make([]RawRecord, 0, len(pairs)/2)
	for i := 0; i+1 < len(pairs); i += 2 {
		out = append(out, RawRecord{"title": pairs[i], "abstract": pairs[i+1]})
	}
	return out
}

// summaryByTitle answers with a lookup keyed on the title embedded in the prompt.
func summaryByTitle(answers map[string]string) summarizeFunc {
	return func(_ context.Context, prompt string) (string, error) {
		for title, answer := range answers {
			if strings.Contains(prompt, "---"+title+"---") {
				return answer, nil
			}
		}
		return "", errors.New("no answer")
	}
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
