package hprof

import (
	"context"
	"io"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	herrors "github.com/hprofstream/hprofstream/pkg/errors"
	"github.com/hprofstream/hprofstream/pkg/utils"
)

var tracer = otel.Tracer("hprofstream/hprof")

// Pipeline runs the three independently scheduled stages — Byte Reader,
// fused Record Framer+Parser, and Aggregator — connected by bounded
// channels so a slow Aggregator applies backpressure all the way back to
// the Byte Reader instead of the process buffering the whole file in
// memory. Grounded on core_reader/parser's sequential design, restructured
// into a producer/consumer pipeline per SPEC_FULL.md §5.
type Pipeline struct {
	cfg Config
}

// NewPipeline constructs a Pipeline for cfg, normalizing zero-valued
// fields to their documented defaults.
func NewPipeline(cfg Config) *Pipeline {
	normalized := cfg
	normalized.normalize()
	return &Pipeline{cfg: normalized}
}

// Run parses and aggregates r's contents, returning the completed Result
// or the first fatal error encountered by any stage. A canceled ctx
// unwinds every stage and returns ctx.Err() (wrapped, if the cancellation
// raced a read).
func (p *Pipeline) Run(ctx context.Context, r io.Reader) (Result, error) {
	var span trace.Span
	if p.cfg.Trace {
		ctx, span = tracer.Start(ctx, "hprof.run")
		defer span.End()
	}

	start := time.Now()
	var timer *utils.Timer
	if p.cfg.Debug {
		timer = utils.NewTimer("hprof.run")
	}

	pool := newBufferPool(p.cfg.ChunkSize)
	chunks := make(chan Chunk, p.cfg.ChannelDepth)
	events := make(chan Event, p.cfg.ChannelDepth*64)

	agg := NewAggregator(0) // idSize is set by runFramerParser once the header is parsed

	// The Byte Reader and fused Framer+Parser form an errgroup: either
	// stage returning an error cancels the shared context, unblocking the
	// other stage's next channel send/receive. The Aggregator runs outside
	// the group and keeps draining events until the framer closes the
	// channel. After an upstream error its state is discarded: Run returns
	// the error without calling Finish.
	g, gCtx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return p.runReader(gCtx, r, pool, chunks, timer)
	})
	g.Go(func() error {
		return p.runFramerParser(gCtx, chunks, events, agg, timer)
	})

	aggDone := make(chan struct{})
	go func() {
		defer close(aggDone)
		p.runAggregator(context.Background(), agg, events, timer)
	}()

	groupErr := g.Wait()
	<-aggDone

	if groupErr != nil {
		return Result{}, groupErr
	}

	result := agg.Finish(p.cfg)
	result.Elapsed = time.Since(start)
	if p.cfg.Debug && timer != nil {
		result.StageTimings = timerDurations(timer)
	}
	return result, nil
}

func timerDurations(t *utils.Timer) map[string]time.Duration {
	out := make(map[string]time.Duration)
	for _, ph := range t.GetPhases() {
		out[ph.Name] = ph.Duration
	}
	return out
}

func (p *Pipeline) runReader(ctx context.Context, r io.Reader, pool *bufferPool, out chan<- Chunk, timer *utils.Timer) error {
	if p.cfg.Trace {
		var span trace.Span
		ctx, span = tracer.Start(ctx, "hprof.reader")
		defer span.End()
	}
	var pt *utils.PhaseTimer
	if timer != nil {
		pt = timer.Start("reader")
		defer pt.Stop()
	}
	rd := newReader(r, pool)
	return rd.run(ctx, out)
}

// runFramerParser is the fused Framer+Parser stage: it reads the fixed
// header once, then loops decoding top-level records directly off the
// chunk stream, emitting Events as it goes. Fusing avoids a third channel
// hop for the cheap, CPU-bound work of re-slicing a record out of its
// owning chunk(s).
func (p *Pipeline) runFramerParser(ctx context.Context, in <-chan Chunk, out chan<- Event, agg *Aggregator, timer *utils.Timer) (err error) {
	defer close(out)

	if p.cfg.Trace {
		var span trace.Span
		ctx, span = tracer.Start(ctx, "hprof.framer")
		defer span.End()
	}
	var pt *utils.PhaseTimer
	if timer != nil {
		pt = timer.Start("framer_parser")
		defer pt.Stop()
	}

	s := newChunkStream(ctx, in)
	defer s.close()

	header, err := readHPROFHeader(s)
	if err != nil {
		return err
	}
	idSize := header.IDSize
	agg.SetIDSize(idSize)

	emit := func(ev Event) error {
		select {
		case out <- ev:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	for {
		rec, ok, err := nextTopLevelRecord(s)
		if err != nil {
			return err
		}
		if !ok {
			return nil
		}
		if err := decodeRecord(rec, idSize, emit); err != nil {
			if herrors.IsFatal(err) {
				return err
			}
			// CodeUnknownTopTag: the record's bytes are already fully
			// consumed by nextTopLevelRecord; nothing further to do.
		}
	}
}

func (p *Pipeline) runAggregator(ctx context.Context, agg *Aggregator, in <-chan Event, timer *utils.Timer) {
	if p.cfg.Trace {
		var span trace.Span
		ctx, span = tracer.Start(ctx, "hprof.aggregator")
		defer span.End()
	}
	var pt *utils.PhaseTimer
	if timer != nil {
		pt = timer.Start("aggregator")
		defer pt.Stop()
	}

	for {
		select {
		case ev, ok := <-in:
			if !ok {
				return
			}
			agg.Apply(ev)
		case <-ctx.Done():
			return
		}
	}
}
