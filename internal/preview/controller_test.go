// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package preview

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/texpreview/internal/debounce"
	"github.com/pdiddy/texpreview/internal/source"
	"github.com/pdiddy/texpreview/internal/transform"
	"github.com/pdiddy/texpreview/pkg/types"
)

const window = 1500 * time.Millisecond

var quietLogger = slog.New(slog.NewTextHandler(io.Discard, nil))

// --- fakes ---

// fakeClock fires timers only when Advance moves time past their deadline.
type fakeClock struct {
	mu     sync.Mutex
	now    time.Duration
	timers []*fakeTimer
}

type fakeTimer struct {
	clock *fakeClock
	at    time.Duration
	f     func()
	done  bool
}

func (t *fakeTimer) Stop() bool {
	t.clock.mu.Lock()
	defer t.clock.mu.Unlock()
	active := !t.done
	t.done = true
	return active
}

func (c *fakeClock) AfterFunc(d time.Duration, f func()) debounce.Timer {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := &fakeTimer{clock: c, at: c.now + d, f: f}
	c.timers = append(c.timers, t)
	return t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now += d
	var due []*fakeTimer
	for _, t := range c.timers {
		if !t.done && t.at <= c.now {
			t.done = true
			due = append(due, t)
		}
	}
	c.mu.Unlock()

	for _, t := range due {
		t.f()
	}
}

// recordingConverter returns immediately and remembers every source.
type recordingConverter struct {
	mu      sync.Mutex
	sources []string
	err     error
}

func (r *recordingConverter) Convert(_ context.Context, src string) (*types.Artifact, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sources = append(r.sources, src)
	if r.err != nil {
		return nil, r.err
	}
	return &types.Artifact{ID: src, Data: []byte(src)}, nil
}

func (r *recordingConverter) Sources() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.sources...)
}

type reply struct {
	data string
	err  error
}

// gatedConverter blocks every call until the test answers it.
type gatedConverter struct {
	mu      sync.Mutex
	pending map[string]chan reply
	arrived chan string
}

func newGatedConverter() *gatedConverter {
	return &gatedConverter{pending: map[string]chan reply{}, arrived: make(chan string, 16)}
}

func (g *gatedConverter) Convert(ctx context.Context, src string) (*types.Artifact, error) {
	ch := make(chan reply, 1)
	g.mu.Lock()
	g.pending[src] = ch
	g.mu.Unlock()
	g.arrived <- src

	select {
	case r := <-ch:
		if r.err != nil {
			return nil, r.err
		}
		return &types.Artifact{ID: r.data, Data: []byte(r.data)}, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// await blocks until calls for every src have arrived.
func (g *gatedConverter) await(t *testing.T, srcs ...string) {
	t.Helper()
	want := map[string]bool{}
	for _, s := range srcs {
		want[s] = true
	}
	for len(want) > 0 {
		select {
		case s := <-g.arrived:
			delete(want, s)
		case <-time.After(2 * time.Second):
			t.Fatalf("conversion calls %v never arrived", want)
		}
	}
}

func (g *gatedConverter) answer(src string, r reply) {
	g.mu.Lock()
	ch := g.pending[src]
	g.mu.Unlock()
	ch <- r
}

func newTestController(conv Converter, opts Options) (*Controller, *fakeClock) {
	clock := &fakeClock{}
	opts.Scheduler = debounce.New(window, debounce.WithAfterFunc(clock.AfterFunc))
	if opts.Logger == nil {
		opts.Logger = quietLogger
	}
	c := New(conv, opts)
	return c, clock
}

// --- debounced scheduling ---

func TestSetDraft_DebouncesToLatestDraft(t *testing.T) {
	conv := &recordingConverter{}
	c, clock := newTestController(conv, Options{AutoPreview: true})
	defer c.Close()

	for _, d := range []string{"a", "ab", "abc", "abcd"} {
		c.SetDraft(d)
		clock.Advance(window / 2)
	}
	assert.Empty(t, conv.Sources(), "nothing fires while typing continues")

	clock.Advance(window / 2)
	c.Wait()

	assert.Equal(t, []string{"abcd"}, conv.Sources())
	assert.Equal(t, "abcd", c.Draft())

	st := c.State()
	assert.Equal(t, types.PhaseReady, st.Phase)
	assert.Equal(t, uint64(1), st.Seq)
	assert.Equal(t, "abcd", string(st.Artifact.Data))
	assert.Equal(t, uint64(1), st.Artifact.Seq)
}

func TestSetDraft_BlankDraftNeverSchedules(t *testing.T) {
	conv := &recordingConverter{}
	c, clock := newTestController(conv, Options{AutoPreview: true})
	defer c.Close()

	c.SetDraft("   \n\t")
	clock.Advance(time.Hour)
	c.Wait()

	assert.Empty(t, conv.Sources())
	assert.Equal(t, types.PhaseIdle, c.State().Phase)
}

func TestSetDraft_UnchangedDraftIsNoOp(t *testing.T) {
	conv := &recordingConverter{}
	c, clock := newTestController(conv, Options{AutoPreview: true})
	defer c.Close()

	c.SetDraft("same")
	clock.Advance(window)
	c.Wait()
	require.Equal(t, []string{"same"}, conv.Sources())

	c.SetDraft("same")
	clock.Advance(time.Hour)
	c.Wait()
	assert.Equal(t, []string{"same"}, conv.Sources(), "resaving an unchanged draft does not convert")

	c.SetDraft("changed")
	clock.Advance(window)
	c.Wait()
	assert.Equal(t, []string{"same", "changed"}, conv.Sources())
}

func TestAutoPreviewGating(t *testing.T) {
	conv := &recordingConverter{}
	c, clock := newTestController(conv, Options{AutoPreview: false})
	defer c.Close()

	for _, d := range []string{"x", "xy", "xyz"} {
		c.SetDraft(d)
		clock.Advance(2 * window)
	}
	c.Wait()
	assert.Empty(t, conv.Sources(), "disabled auto-preview must never schedule")

	assert.True(t, c.ToggleAutoPreview())
	c.SetDraft("xyz1")
	clock.Advance(window / 3)
	c.SetDraft("xyz12")
	clock.Advance(window)
	c.Wait()
	assert.Equal(t, []string{"xyz12"}, conv.Sources(), "one conversion per quiet period")

	c.SetDraft("second")
	clock.Advance(window)
	c.Wait()
	assert.Equal(t, []string{"xyz12", "second"}, conv.Sources())
}

func TestToggleOn_SchedulesCurrentDraft(t *testing.T) {
	conv := &recordingConverter{}
	c, clock := newTestController(conv, Options{})
	defer c.Close()

	c.SetDraft("draft")
	assert.True(t, c.ToggleAutoPreview())
	clock.Advance(window)
	c.Wait()

	assert.Equal(t, []string{"draft"}, conv.Sources())
}

func TestToggleOff_CancelsPending(t *testing.T) {
	conv := &recordingConverter{}
	c, clock := newTestController(conv, Options{AutoPreview: true})
	defer c.Close()

	c.SetDraft("draft")
	assert.False(t, c.ToggleAutoPreview())
	assert.False(t, c.AutoPreviewEnabled())
	clock.Advance(time.Hour)
	c.Wait()

	assert.Empty(t, conv.Sources())
}

func TestIssueAuto_DroppedAfterDisable(t *testing.T) {
	conv := &recordingConverter{}
	c, _ := newTestController(conv, Options{AutoPreview: true})
	defer c.Close()

	c.SetAutoPreview(false)
	c.issueAuto("late")
	c.Wait()

	assert.Empty(t, conv.Sources())
}

// --- manual conversion ---

func TestRequestManualConversion(t *testing.T) {
	conv := &recordingConverter{}
	c, _ := newTestController(conv, Options{})
	defer c.Close()

	assert.Zero(t, c.RequestManualConversion(), "blank draft is not converted")

	c.SetDraft("manual")
	n := c.RequestManualConversion()
	c.Wait()

	assert.Equal(t, uint64(1), n)
	assert.Equal(t, []string{"manual"}, conv.Sources())
	assert.Equal(t, types.PhaseReady, c.State().Phase)
}

// --- ordering ---

func TestStaleness_AllSettlementOrders(t *testing.T) {
	tests := []struct {
		name        string
		first       string // request answered first
		reply1      reply
		reply2      reply
		wantPhase   types.Phase
		wantData    string
		wantMessage string
	}{
		{"newer succeeds first, older succeeds late", "two", reply{data: "pdf-1"}, reply{data: "pdf-2"}, types.PhaseReady, "pdf-2", ""},
		{"older succeeds first, newer succeeds", "one", reply{data: "pdf-1"}, reply{data: "pdf-2"}, types.PhaseReady, "pdf-2", ""},
		{"newer fails first, older succeeds late", "two", reply{data: "pdf-1"}, reply{err: errors.New("bad input")}, types.PhaseError, "", "bad input"},
		{"older fails late, newer succeeded", "two", reply{err: errors.New("timeout")}, reply{data: "pdf-2"}, types.PhaseReady, "pdf-2", ""},
		{"older succeeds first, newer fails", "one", reply{data: "pdf-1"}, reply{err: errors.New("bad input")}, types.PhaseError, "", "bad input"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			conv := newGatedConverter()
			var mu sync.Mutex
			var delivered []uint64
			record := func(r types.ConversionResult) {
				mu.Lock()
				delivered = append(delivered, r.Seq)
				mu.Unlock()
			}
			c, _ := newTestController(conv, Options{OnResult: record, OnError: record})
			defer c.Close()

			n1 := c.TriggerManual("one")
			n2 := c.TriggerManual("two")
			require.Less(t, n1, n2)
			conv.await(t, "one", "two")

			replies := map[string]reply{"one": tt.reply1, "two": tt.reply2}
			second := "one"
			if tt.first == "one" {
				second = "two"
			}

			conv.answer(tt.first, replies[tt.first])
			if tt.first == "one" {
				assert.Never(t, func() bool { return !c.State().Busy() }, 50*time.Millisecond, 5*time.Millisecond,
					"state must stay converting until the newest request settles")
			} else {
				require.Eventually(t, func() bool { return !c.State().Busy() }, time.Second, time.Millisecond)
			}
			conv.answer(second, replies[second])
			c.Wait()

			st := c.State()
			assert.Equal(t, tt.wantPhase, st.Phase)
			assert.Equal(t, n2, st.Seq)
			assert.Equal(t, tt.wantMessage, st.Message)
			if tt.wantData != "" {
				require.NotNil(t, st.Artifact)
				assert.Equal(t, tt.wantData, string(st.Artifact.Data))
			}

			mu.Lock()
			defer mu.Unlock()
			assert.Equal(t, []uint64{n2}, delivered, "only the newest result is delivered")
		})
	}
}

func TestError_KeepsLastArtifactAndClearsOnNewCycle(t *testing.T) {
	conv := newGatedConverter()
	c, _ := newTestController(conv, Options{})
	defer c.Close()

	c.TriggerManual("good")
	conv.await(t, "good")
	conv.answer("good", reply{data: "pdf-good"})
	c.Wait()

	c.TriggerManual("bad")
	conv.await(t, "bad")
	conv.answer("bad", reply{err: errors.New("! Undefined control sequence.")})
	c.Wait()

	st := c.State()
	assert.Equal(t, types.PhaseError, st.Phase)
	assert.Equal(t, "! Undefined control sequence.", st.Message)
	require.NotNil(t, st.Artifact)
	assert.Equal(t, "pdf-good", string(st.Artifact.Data))

	c.TriggerManual("again")
	st = c.State()
	assert.Equal(t, types.PhaseConverting, st.Phase)
	assert.Empty(t, st.Message, "a new cycle clears the error")
	conv.await(t, "again")
	conv.answer("again", reply{data: "pdf-again"})
	c.Wait()
}

func TestCallbacks(t *testing.T) {
	conv := &recordingConverter{}
	var got []types.ConversionResult
	var mu sync.Mutex
	c, _ := newTestController(conv, Options{
		OnResult: func(r types.ConversionResult) { mu.Lock(); got = append(got, r); mu.Unlock() },
		OnError:  func(types.ConversionResult) { t.Error("unexpected error callback") },
	})
	defer c.Close()

	c.TriggerManual("src")
	c.Wait()

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, got, 1)
	assert.True(t, got[0].OK())
	assert.Equal(t, "src", got[0].Source)
	assert.Equal(t, uint64(1), got[0].Seq)
	assert.False(t, got[0].SettledAt.IsZero())
}

func TestFailure_ReportedVerbatimWithoutRetry(t *testing.T) {
	conv := &recordingConverter{err: errors.New("Failed to convert LaTeX to PDF")}
	var errs []string
	c, _ := newTestController(conv, Options{
		OnError: func(r types.ConversionResult) { errs = append(errs, r.Message) },
	})
	defer c.Close()

	c.TriggerManual("src")
	c.Wait()

	assert.Equal(t, []string{"Failed to convert LaTeX to PDF"}, errs)
	assert.Len(t, conv.Sources(), 1, "failures are never retried")
	assert.Equal(t, types.PhaseError, c.State().Phase)
}

func TestNilArtifactIsFailure(t *testing.T) {
	c, _ := newTestController(nilConverter{}, Options{})
	defer c.Close()

	c.TriggerManual("src")
	c.Wait()

	assert.Equal(t, types.PhaseError, c.State().Phase)
	assert.Contains(t, c.State().Message, "no artifact")
}

type nilConverter struct{}

func (nilConverter) Convert(context.Context, string) (*types.Artifact, error) { return nil, nil }

// --- timeout and teardown ---

func TestTimeout(t *testing.T) {
	conv := newGatedConverter()
	c, _ := newTestController(conv, Options{Timeout: 20 * time.Millisecond})
	defer c.Close()

	c.TriggerManual("slow")
	c.Wait()

	st := c.State()
	assert.Equal(t, types.PhaseError, st.Phase)
	assert.Contains(t, st.Message, ErrTimeout.Error())
}

func TestTimeout_BackendIgnoringContext(t *testing.T) {
	block := make(chan struct{})
	defer close(block)
	c, _ := newTestController(stuckConverter{block: block}, Options{Timeout: 20 * time.Millisecond})
	defer c.Close()

	c.TriggerManual("stuck")
	c.Wait()

	assert.Equal(t, types.PhaseError, c.State().Phase)
	assert.Contains(t, c.State().Message, "timed out after 20ms")
}

type stuckConverter struct{ block chan struct{} }

func (s stuckConverter) Convert(context.Context, string) (*types.Artifact, error) {
	<-s.block
	return nil, errors.New("released")
}

func TestClose(t *testing.T) {
	conv := newGatedConverter()
	var calls int
	c, clock := newTestController(conv, Options{
		AutoPreview: true,
		OnError:     func(types.ConversionResult) { calls++ },
	})

	c.TriggerManual("inflight")
	conv.await(t, "inflight")
	c.SetDraft("pending")

	c.Close()
	c.Close()
	clock.Advance(time.Hour)
	c.Wait()

	assert.Zero(t, calls, "results settling after Close are discarded")
	assert.Zero(t, c.TriggerManual("late"))
	c.SetDraft("ignored")
	assert.Equal(t, "pending", c.Draft())
	assert.Equal(t, types.PhaseConverting, c.State().Phase)
}

// --- file and plain-text input ---

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	tex := filepath.Join(dir, "doc.tex")
	require.NoError(t, os.WriteFile(tex, []byte(`\documentclass{article}`), 0o644))
	txt := filepath.Join(dir, "doc.txt")
	require.NoError(t, os.WriteFile(txt, []byte("plain"), 0o644))

	conv := &recordingConverter{}
	c, clock := newTestController(conv, Options{AutoPreview: true})
	defer c.Close()

	require.NoError(t, c.LoadFromFile(tex))
	assert.Equal(t, `\documentclass{article}`, c.Draft())

	err := c.LoadFromFile(txt)
	assert.ErrorIs(t, err, source.ErrUnsupported)
	assert.Equal(t, `\documentclass{article}`, c.Draft(), "unsupported files leave the draft alone")

	clock.Advance(window)
	c.Wait()
	assert.Equal(t, []string{`\documentclass{article}`}, conv.Sources())
}

func TestPlainText(t *testing.T) {
	conv := &recordingConverter{}
	c, clock := newTestController(conv, Options{AutoPreview: true})
	defer c.Close()

	out := c.TransformPlainText("1. apple\n2. banana")
	assert.Equal(t, transform.Transform("1. apple\n2. banana"), out)
	assert.Empty(t, c.Draft(), "transforming does not touch the draft")

	assert.False(t, c.ImportPlainText("  "))
	assert.Empty(t, c.Draft())

	assert.True(t, c.ImportPlainText("Hello world."))
	assert.Equal(t, transform.Transform("Hello world."), c.Draft())

	clock.Advance(window)
	c.Wait()
	assert.Equal(t, []string{transform.Transform("Hello world.")}, conv.Sources())
}
