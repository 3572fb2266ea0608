package preview

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/mx-space/viewblock/internal/viewblock"
	"go.uber.org/zap"
)

// DefaultDebounce is the quiet period after the last edit before a preview is fetched.
const DefaultDebounce = 1500 * time.Millisecond

// GenericErrorMessage is shown when a failed response carries no message.
const GenericErrorMessage = "An error occurred while trying to get the View information."

// DeletedMessageFormat is shown when the referenced view is no longer published.
const DeletedMessageFormat = "Error while retrieving the View preview. The selected View (ID: %s) was not found."

// ViewNotSetMessage is shown when a preview is requested without a view.
const ViewNotSetMessage = "View ID not set."

// ErrTransport wraps network and decoding failures of a preview request.
var ErrTransport = errors.New("preview transport error")

// Request is one dispatched preview fetch.
type Request struct {
	Seq        uint64
	Attributes viewblock.AttributeSet
}

// Response is the decoded answer of the preview endpoint.
type Response struct {
	Success bool
	Data    viewblock.PreviewData
	Message string
}

// Fetcher performs a preview request.
type Fetcher interface {
	Fetch(ctx context.Context, req Request) (Response, error)
}

// FetcherFunc adapts a function to Fetcher.
type FetcherFunc func(ctx context.Context, req Request) (Response, error)

func (f FetcherFunc) Fetch(ctx context.Context, req Request) (Response, error) { return f(ctx, req) }

// State is what the preview currently presents.
type State int

const (
	// StateBlank renders nothing; used while a saved block initializes.
	StateBlank State = iota
	StateLoading
	StateError
	StateDeleted
	StateContent
)

func (s State) String() string {
	switch s {
	case StateBlank:
		return "blank"
	case StateLoading:
		return "loading"
	case StateError:
		return "error"
	case StateDeleted:
		return "deleted"
	case StateContent:
		return "content"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// Snapshot is the presentable preview state.
type Snapshot struct {
	State    State
	Message  string
	Content  string
	Overlay  string
	InFlight int
	Pending  bool
}

// Option configures a Coordinator.
type Option func(*Coordinator)

// WithClock replaces the wall clock used for debouncing.
func WithClock(c Clock) Option { return func(co *Coordinator) { co.debounce.clock = c } }

// WithDebounce sets the debounce window.
func WithDebounce(d time.Duration) Option {
	return func(co *Coordinator) {
		if d > 0 {
			co.debounce.delay = d
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option { return func(co *Coordinator) { co.logger = l } }

// WithFactsHandler registers the host callback receiving fresh view facts after a
// successful preview, so the persisted attributes stay in sync.
func WithFactsHandler(fn func(viewblock.Facts)) Option {
	return func(co *Coordinator) { co.onFacts = fn }
}

// WithKnownViews sets the published views used to detect deleted views.
func WithKnownViews(k KnownViews) Option { return func(co *Coordinator) { co.known = k } }

// Coordinator drives the editor preview of a single view block. Edits are
// debounced; every trailing edit dispatches one request. Requests may overlap and
// are never cancelled, but a response older than the last applied one is dropped.
type Coordinator struct {
	fetcher Fetcher
	logger  *zap.Logger
	onFacts func(viewblock.Facts)

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu           sync.Mutex
	debounce     debouncer
	known        KnownViews
	attrs        viewblock.AttributeSet
	initializing bool
	mounted      bool
	inFlight     int
	nextSeq      uint64
	appliedSeq   uint64
	errored      bool
	errMessage   string
	content      string
	overlay      string
}

// NewCoordinator creates a coordinator dispatching through fetcher.
func NewCoordinator(fetcher Fetcher, opts ...Option) *Coordinator {
	ctx, cancel := context.WithCancel(context.Background())
	c := &Coordinator{
		fetcher:  fetcher,
		logger:   zap.NewNop(),
		ctx:      ctx,
		cancel:   cancel,
		debounce: debouncer{clock: realClock{}, delay: DefaultDebounce},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Mount attaches the coordinator to a block. A block that already references a
// view (a saved block being reopened) schedules its preview right away and its
// first snapshot is blank. A block without a view waits for one to be selected.
func (c *Coordinator) Mount(attrs viewblock.AttributeSet) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.attrs = attrs.Clone()
	c.mounted = true
	if attrs.View == "" || c.ctx.Err() != nil {
		return
	}
	c.initializing = true
	c.debounce.Trigger(c.fire)
}

// Update records new block attributes and schedules a preview when a field that
// affects rendering changed.
func (c *Coordinator) Update(next viewblock.AttributeSet) {
	c.mu.Lock()
	defer c.mu.Unlock()
	prev := c.attrs
	c.attrs = next.Clone()
	if !c.mounted || !RelevantChange(prev, next) {
		return
	}
	c.scheduleLocked()
}

// Refresh schedules a preview regardless of what changed.
func (c *Coordinator) Refresh() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.scheduleLocked()
}

// SetKnownViews replaces the published views used to detect deleted views.
func (c *Coordinator) SetKnownViews(k KnownViews) {
	c.mu.Lock()
	c.known = k
	c.mu.Unlock()
}

func (c *Coordinator) scheduleLocked() {
	if c.ctx.Err() != nil {
		return
	}
	c.initializing = false
	c.debounce.Trigger(c.fire)
}

// fire runs when the debounce window closes.
func (c *Coordinator) fire(gen uint64) {
	c.mu.Lock()
	if !c.debounce.Fired(gen) || c.ctx.Err() != nil {
		c.mu.Unlock()
		return
	}
	c.initializing = false
	attrs := c.attrs.Clone()
	ref := viewblock.PreviewReference(attrs.View)
	if ref == "" {
		c.errored = true
		c.errMessage = ViewNotSetMessage
		c.mu.Unlock()
		return
	}
	if c.known.Loaded() && !c.known.Contains(ref) {
		c.mu.Unlock()
		c.logger.Debug("view block preview skipped, view not published", zap.String("view", ref))
		return
	}

	c.nextSeq++
	seq := c.nextSeq
	c.inFlight++
	c.errored = false
	c.errMessage = ""
	c.wg.Add(1)
	c.mu.Unlock()

	go c.dispatch(Request{Seq: seq, Attributes: attrs})
}

func (c *Coordinator) dispatch(req Request) {
	defer c.wg.Done()
	resp, err := c.fetcher.Fetch(c.ctx, req)
	c.apply(req.Seq, resp, err)
}

func (c *Coordinator) apply(seq uint64, resp Response, err error) {
	c.mu.Lock()
	c.inFlight--
	if seq < c.appliedSeq {
		c.mu.Unlock()
		c.logger.Debug("stale view block preview dropped", zap.Uint64("seq", seq))
		return
	}
	c.appliedSeq = seq

	if err != nil || !resp.Success {
		msg := resp.Message
		if err != nil {
			c.logger.Warn("view block preview request failed", zap.Uint64("seq", seq), zap.Error(err))
			msg = ""
		}
		if msg == "" {
			msg = GenericErrorMessage
		}
		c.errored = true
		c.errMessage = msg
		c.mu.Unlock()
		return
	}

	c.errored = false
	c.errMessage = ""
	c.content = resp.Data.ViewContent
	c.overlay = resp.Data.Overlay
	c.attrs.ApplyFacts(resp.Data.Facts())
	onFacts := c.onFacts
	c.mu.Unlock()

	if onFacts != nil {
		onFacts(resp.Data.Facts())
	}
}

// Snapshot returns what the preview presents right now, in priority order: blank
// for the first snapshot after mounting a saved block, loading while any request is in flight, then error, then
// deleted, then the last rendered content.
func (c *Coordinator) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	s := Snapshot{
		Content:  c.content,
		Overlay:  c.overlay,
		InFlight: c.inFlight,
		Pending:  c.debounce.Pending(),
	}
	ref := viewblock.PreviewReference(c.attrs.View)
	switch {
	case c.initializing:
		c.initializing = false
		s.State = StateBlank
	case c.inFlight > 0:
		s.State = StateLoading
	case c.errored:
		s.State = StateError
		s.Message = c.errMessage
	case c.known.Loaded() && !c.known.Contains(ref):
		s.State = StateDeleted
		s.Message = fmt.Sprintf(DeletedMessageFormat, ref)
	default:
		s.State = StateContent
	}
	return s
}

// Attributes returns the block attributes including synced view facts.
func (c *Coordinator) Attributes() viewblock.AttributeSet {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.attrs.Clone()
}

// Wait blocks until every dispatched request has been applied.
func (c *Coordinator) Wait() { c.wg.Wait() }

// Close cancels the pending debounce and in-flight requests and waits for them.
func (c *Coordinator) Close() {
	c.mu.Lock()
	c.debounce.Cancel()
	c.mu.Unlock()
	c.cancel()
	c.wg.Wait()
}

// RelevantChange reports whether an edit affects the rendered preview.
func RelevantChange(prev, next viewblock.AttributeSet) bool {
	if viewblock.PreviewReference(prev.View) != viewblock.PreviewReference(next.View) {
		return true
	}
	if prev.Limit != next.Limit || prev.OverrideLimit != next.OverrideLimit ||
		prev.Offset != next.Offset || prev.OverrideOffset != next.OverrideOffset ||
		prev.Orderby != next.Orderby || prev.OverrideOrderby != next.OverrideOrderby ||
		prev.Order != next.Order || prev.OverrideOrder != next.OverrideOrder ||
		prev.SecondaryOrderby != next.SecondaryOrderby || prev.OverrideSecondaryOrderby != next.OverrideSecondaryOrderby ||
		prev.SecondaryOrder != next.SecondaryOrder || prev.OverrideSecondaryOrder != next.OverrideSecondaryOrder ||
		prev.FormDisplay != next.FormDisplay {
		return true
	}
	if len(prev.QueryFilters) != len(next.QueryFilters) {
		return true
	}
	for k, v := range next.QueryFilters {
		if pv, ok := prev.QueryFilters[k]; !ok || pv != v {
			return true
		}
	}
	return false
}
