// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package preview implements the auto-preview controller: it owns the
// current draft, debounces edits into conversion requests, and applies
// results in issue order so a slow early request never overwrites a newer
// one.
package preview

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/pdiddy/texpreview/internal/debounce"
	"github.com/pdiddy/texpreview/internal/source"
	"github.com/pdiddy/texpreview/internal/transform"
	"github.com/pdiddy/texpreview/pkg/types"
)

// ErrTimeout is reported when a conversion exceeds Options.Timeout.
var ErrTimeout = errors.New("conversion timed out")

// Converter renders a draft. convert.Converter satisfies it.
type Converter interface {
	Convert(ctx context.Context, source string) (*types.Artifact, error)
}

// Options configures a Controller.
type Options struct {
	// Window is the debounce quiet period. Ignored when Scheduler is set.
	Window time.Duration

	// Scheduler overrides the debounce scheduler built from Window.
	Scheduler *debounce.Scheduler

	// AutoPreview enables scheduling on draft changes.
	AutoPreview bool

	// Timeout bounds each conversion. Zero waits indefinitely.
	Timeout time.Duration

	// Load reads a draft from disk. Defaults to source.Load.
	Load func(path string) (string, error)

	// Logger receives lifecycle events. Defaults to slog.Default().
	Logger *slog.Logger

	// OnResult is called after a successful conversion is applied.
	OnResult func(types.ConversionResult)

	// OnError is called after a failed conversion is applied.
	OnError func(types.ConversionResult)
}

// Controller decides when to call the Converter and reconciles results that
// arrive out of order. Each issued request gets the next sequence number;
// only the request holding the highest number may change the state.
//
// Callbacks run on the settling goroutine, outside the controller lock, one
// at a time and in increasing sequence order. They may call any method
// except Wait.
type Controller struct {
	conv     Converter
	sched    *debounce.Scheduler
	load     func(string) (string, error)
	timeout  time.Duration
	logger   *slog.Logger
	onResult func(types.ConversionResult)
	onError  func(types.ConversionResult)

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu          sync.Mutex
	draft       string
	autoPreview bool
	state       types.ConversionState
	closed      bool

	notifyMu  sync.Mutex
	delivered uint64
}

// New creates a Controller around conv.
func New(conv Converter, opts Options) *Controller {
	sched := opts.Scheduler
	if sched == nil {
		sched = debounce.New(opts.Window)
	}

	load := opts.Load
	if load == nil {
		load = source.Load
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &Controller{
		conv:     conv,
		sched:    sched,
		load:     load,
		timeout:  opts.Timeout,
		logger:   logger,
		onResult: opts.OnResult,
		onError:  opts.OnError,

		ctx:    ctx,
		cancel: cancel,

		autoPreview: opts.AutoPreview,
		state:       types.ConversionState{Phase: types.PhaseIdle},
	}
}

// Draft returns the current draft.
func (c *Controller) Draft() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.draft
}

// AutoPreviewEnabled reports whether draft changes schedule conversions.
func (c *Controller) AutoPreviewEnabled() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.autoPreview
}

// State returns a snapshot of the conversion state.
func (c *Controller) State() types.ConversionState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// SetDraft replaces the draft. With auto-preview on and a non-blank draft it
// (re)starts the debounce window; the conversion is issued once edits stop
// for a full window. Setting the draft it already holds is a no-op.
func (c *Controller) SetDraft(text string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed || text == c.draft {
		return
	}
	c.draft = text
	c.scheduleLocked(text)
}

func (c *Controller) scheduleLocked(draft string) {
	if !c.autoPreview || strings.TrimSpace(draft) == "" {
		return
	}
	c.sched.Schedule(func() { c.issueAuto(draft) })
}

// ToggleAutoPreview flips auto-preview and returns the new value.
func (c *Controller) ToggleAutoPreview() bool {
	c.mu.Lock()
	on := !c.autoPreview
	c.mu.Unlock()

	c.SetAutoPreview(on)
	return on
}

// SetAutoPreview turns auto-preview on or off. Turning it off drops any
// pending debounced conversion; turning it on schedules the current draft.
func (c *Controller) SetAutoPreview(on bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed || c.autoPreview == on {
		return
	}
	c.autoPreview = on
	if !on {
		c.sched.Cancel()
		return
	}
	c.scheduleLocked(c.draft)
}

// RequestManualConversion converts the current draft immediately and
// returns the request's sequence number, or 0 when nothing was issued.
func (c *Controller) RequestManualConversion() uint64 {
	return c.TriggerManual(c.Draft())
}

// TriggerManual converts draft immediately, bypassing the debounce window.
// It is subject to the same ordering rule as automatic requests. Blank
// drafts are ignored and return 0.
func (c *Controller) TriggerManual(draft string) uint64 {
	if strings.TrimSpace(draft) == "" {
		return 0
	}
	return c.issue(draft, false)
}

// LoadFromFile replaces the draft with the contents of path. Unsupported
// files leave the draft unchanged and return an error wrapping
// source.ErrUnsupported.
func (c *Controller) LoadFromFile(path string) error {
	text, err := c.load(path)
	if err != nil {
		return err
	}
	c.SetDraft(text)
	return nil
}

// TransformPlainText converts plain text into a LaTeX document without
// touching the draft.
func (c *Controller) TransformPlainText(text string) string {
	return transform.Transform(text)
}

// ImportPlainText replaces the draft with the LaTeX produced from text. It
// reports false and does nothing when text is blank.
func (c *Controller) ImportPlainText(text string) bool {
	if strings.TrimSpace(text) == "" {
		return false
	}
	c.SetDraft(transform.Transform(text))
	return true
}

// Wait blocks until every issued conversion has settled. It must not race
// with calls that issue new conversions.
func (c *Controller) Wait() {
	c.wg.Wait()
}

// Close drops any pending debounced conversion, cancels in-flight requests
// and turns every later command into a no-op. Results that settle after
// Close are discarded.
func (c *Controller) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	c.mu.Unlock()

	c.sched.Cancel()
	c.cancel()
}

func (c *Controller) issueAuto(draft string) {
	c.issue(draft, true)
}

// issue assigns the next sequence number and starts the conversion.
// Automatic requests are dropped if auto-preview was turned off after the
// window elapsed.
func (c *Controller) issue(draft string, auto bool) uint64 {
	c.mu.Lock()
	if c.closed || (auto && !c.autoPreview) {
		c.mu.Unlock()
		return 0
	}
	c.state.Seq++
	n := c.state.Seq
	c.state.Phase = types.PhaseConverting
	c.state.Message = ""
	c.wg.Add(1)
	c.mu.Unlock()

	c.logger.Debug("conversion issued", "seq", n, "auto", auto, "bytes", len(draft))

	go c.run(n, draft, time.Now())
	return n
}

func (c *Controller) run(n uint64, draft string, issued time.Time) {
	defer c.wg.Done()

	ctx, cancel := c.ctx, context.CancelFunc(func() {})
	if c.timeout > 0 {
		ctx, cancel = context.WithTimeout(c.ctx, c.timeout)
	}
	defer cancel()

	artifact, err := c.convert(ctx, draft)
	c.settle(n, draft, issued, artifact, err)
}

type outcome struct {
	artifact *types.Artifact
	err      error
}

// convert calls the Converter and stops waiting when ctx ends, so a backend
// that ignores its context cannot hold the controller in the converting
// phase past the timeout.
func (c *Controller) convert(ctx context.Context, draft string) (*types.Artifact, error) {
	done := make(chan outcome, 1)
	go func() {
		a, err := c.conv.Convert(ctx, draft)
		done <- outcome{artifact: a, err: err}
	}()

	var o outcome
	select {
	case o = <-done:
	case <-ctx.Done():
		o.err = ctx.Err()
	}

	if o.err != nil && errors.Is(ctx.Err(), context.DeadlineExceeded) && c.ctx.Err() == nil {
		return nil, fmt.Errorf("%w after %s", ErrTimeout, c.timeout)
	}
	if o.err == nil && o.artifact == nil {
		o.err = errors.New("converter returned no artifact")
	}
	return o.artifact, o.err
}

// settle applies a result if n is still the newest request.
func (c *Controller) settle(n uint64, draft string, issued time.Time, artifact *types.Artifact, err error) {
	res := types.ConversionResult{
		Seq:       n,
		Source:    draft,
		Duration:  time.Since(issued),
		SettledAt: time.Now().UTC(),
	}
	if err != nil {
		res.Message = err.Error()
	} else {
		a := *artifact
		a.Seq = n
		res.Artifact = &a
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	if n != c.state.Seq {
		latest := c.state.Seq
		c.mu.Unlock()
		c.logger.Debug("discarding stale conversion", "seq", n, "latest", latest, "ok", res.OK())
		return
	}
	if res.OK() {
		c.state = types.ConversionState{Phase: types.PhaseReady, Seq: n, Artifact: res.Artifact}
	} else {
		c.state.Phase = types.PhaseError
		c.state.Message = res.Message
	}
	c.mu.Unlock()

	if res.OK() {
		c.logger.Info("conversion ready", "seq", n, "bytes", len(res.Artifact.Data), "duration", res.Duration)
		c.notify(res, c.onResult)
	} else {
		c.logger.Warn("conversion failed", "seq", n, "error", res.Message, "duration", res.Duration)
		c.notify(res, c.onError)
	}
}

// notify delivers res unless a newer result was already delivered.
func (c *Controller) notify(res types.ConversionResult, fn func(types.ConversionResult)) {
	c.notifyMu.Lock()
	defer c.notifyMu.Unlock()

	if res.Seq < c.delivered {
		return
	}
	c.delivered = res.Seq
	if fn != nil {
		fn(res)
	}
}
