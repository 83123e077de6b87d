package harness

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/roach88/chainledger/internal/core"
	"github.com/roach88/chainledger/internal/engine"
)

// Epoch is the fixed start time of every scenario clock.
var Epoch = time.UnixMilli(1_700_000_000_000).UTC()

// Harness runs one scenario against a fresh engine on a fixed clock.
type Harness struct {
	engine *engine.Engine
	clock  *engine.FixedClock
}

// Run executes s and evaluates its assertions.
//
// Each run gets a new engine built from s.Ledger. A setup step that fails
// aborts the run with an error. A flow step whose outcome differs from its
// expect clause, or that fails without one, is recorded in Result.Errors.
func Run(ctx context.Context, s *Scenario, opts ...engine.Option) (*Result, error) {
	clock := engine.NewFixedClock(Epoch)
	base := []engine.Option{engine.WithLogger(zap.NewNop()), engine.WithClock(clock.Now)}

	e, err := engine.New(ctx, s.Ledger, append(base, opts...)...)
	if err != nil {
		return nil, fmt.Errorf("failed to build ledger: %w", err)
	}
	defer e.Shutdown(ctx)

	h := &Harness{engine: e, clock: clock}
	result := NewResult()

	for i, step := range s.Setup {
		if err := h.execute(ctx, step, result); err != nil {
			return nil, fmt.Errorf("setup[%d] %s: %w", i, step.Op, err)
		}
	}

	for i, step := range s.Flow {
		err := h.execute(ctx, step, result)
		var want engine.ErrorKind
		if step.Expect != nil {
			want = step.Expect.Error
		}
		got := engine.KindOf(err)

		switch {
		case want == "" && err != nil:
			result.AddError(fmt.Sprintf("flow[%d] %s: unexpected error: %v", i, step.Op, err))
		case want != "" && err == nil:
			result.AddError(fmt.Sprintf("flow[%d] %s: expected %s error, got success", i, step.Op, want))
		case want != "" && got != want:
			result.AddError(fmt.Sprintf("flow[%d] %s: expected %s error, got %s: %v", i, step.Op, want, got, err))
		}
	}

	for _, msg := range EvaluateAssertions(ctx, e, s.Assertions) {
		result.AddError(msg)
	}

	if tip := e.LatestHash(); tip != nil {
		result.Tip = tip.String()
	}
	return result, nil
}

// execute runs one step and appends its trace event.
func (h *Harness) execute(ctx context.Context, step Step, result *Result) error {
	ev := TraceEvent{Op: step.Op}
	err := h.dispatch(ctx, step, &ev)
	if err != nil {
		ev.Error = string(engine.KindOf(err))
	}
	ev.Length = h.engine.Len()
	result.addEvent(ev)
	return err
}

func (h *Harness) dispatch(ctx context.Context, step Step, ev *TraceEvent) error {
	switch step.Op {
	case OpAppend:
		ev.IDs = []string{step.Record.ID}
		hash, err := h.engine.AppendRecord(ctx, *step.Record, h.request(step.As))
		if !hash.IsZero() {
			ev.Hashes = []string{hash.String()}
		}
		return err

	case OpBatch:
		ev.IDs = make([]string, len(step.Records))
		for i, r := range step.Records {
			ev.IDs[i] = r.ID
		}
		hashes, err := h.engine.AppendBatch(ctx, step.Records, h.request(step.As))
		for _, hash := range hashes {
			ev.Hashes = append(ev.Hashes, hash.String())
		}
		return err

	case OpGrant:
		return h.engine.Grant(ctx, *step.Grant)

	case OpRevoke:
		g := step.Grant
		return h.engine.Revoke(ctx, g.SubjectOID, g.ResourceOID, g.Action)

	case OpAdvance:
		d, err := time.ParseDuration(step.By)
		if err != nil {
			return err
		}
		h.clock.Advance(d)
		return nil

	case OpVerify:
		return h.engine.Verify()
	}
	return fmt.Errorf("unknown op %q", step.Op)
}

func (h *Harness) request(requester string) core.RequestContext {
	return core.RequestContext{
		RequesterOID: requester,
		Timestamp:    core.NowMillis(h.clock.Now()),
	}
}
