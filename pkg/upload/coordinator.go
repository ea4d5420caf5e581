package upload

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/google/uuid"

	smerrors "github.com/otherjamesbrown/summit/pkg/errors"
	"github.com/otherjamesbrown/summit/pkg/logging"
	"github.com/otherjamesbrown/summit/pkg/observability"
)

// Default timings after a successful upload.
const (
	DefaultNavigateDelay = 3 * time.Second
	DefaultResetDelay    = 5 * time.Second
	DefaultNavigateRoute = "/meetings"
)

// ErrClosed is returned by Start after Close.
var ErrClosed = fmt.Errorf("upload coordinator closed: %w", smerrors.ErrInvalidState)

// Uploader sends the recording. *client.ScriptClient satisfies it.
// The returned body is the undecoded 2xx response.
type Uploader interface {
	PostScript(ctx context.Context, title, fileName string, file io.Reader) ([]byte, error)
}

// Navigator performs the post-upload route change.
type Navigator interface {
	Navigate(ctx context.Context, route string) error
}

// NavigatorFunc adapts a function to Navigator.
type NavigatorFunc func(ctx context.Context, route string) error

// Navigate calls f.
func (f NavigatorFunc) Navigate(ctx context.Context, route string) error { return f(ctx, route) }

// Observer is told about every applied transition, in order. Observers run
// synchronously on the transition path and must not call Start or Dismiss.
type Observer interface {
	OnTransition(ctx context.Context, prev, next State)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(ctx context.Context, prev, next State)

// OnTransition calls f.
func (f ObserverFunc) OnTransition(ctx context.Context, prev, next State) { f(ctx, prev, next) }

// Config holds coordinator timings and limits.
type Config struct {
	NavigateDelay  time.Duration
	ResetDelay     time.Duration
	MaxTitleLength int
	NavigateRoute  string
}

// DefaultConfig returns the standard 3s navigate / 5s reset timings.
func DefaultConfig() Config {
	return Config{
		NavigateDelay:  DefaultNavigateDelay,
		ResetDelay:     DefaultResetDelay,
		MaxTitleLength: DefaultMaxTitleLength,
		NavigateRoute:  DefaultNavigateRoute,
	}
}

// Option configures a Coordinator.
type Option func(*Coordinator)

// WithNavigator sets the navigation side effect.
func WithNavigator(n Navigator) Option {
	return func(c *Coordinator) { c.navigator = n }
}

// WithObserver adds a transition observer.
func WithObserver(o Observer) Option {
	return func(c *Coordinator) { c.observers = append(c.observers, o) }
}

// WithLogger sets the coordinator logger.
func WithLogger(l logging.Logger) Option {
	return func(c *Coordinator) { c.logger = l }
}

// WithTracer sets the tracer used for upload spans.
func WithTracer(t *observability.Tracer) Option {
	return func(c *Coordinator) { c.tracer = t }
}

// WithClock overrides the timestamp source.
func WithClock(now func() time.Time) Option {
	return func(c *Coordinator) { c.now = now }
}

const subscriberBuffer = 16

// Coordinator owns the process-wide upload state. It is the only writer;
// readers use Snapshot or Subscribe.
//
// A new upload is rejected with ErrUploadInProgress while another is in
// flight. Starting over a completed or failed upload supersedes it and
// cancels its pending navigation and reset.
type Coordinator struct {
	uploader  Uploader
	navigator Navigator
	observers []Observer
	cfg       Config
	logger    logging.Logger
	tracer    *observability.Tracer
	now       func() time.Time

	mu          sync.Mutex
	state       State
	closed      bool
	cancel      context.CancelFunc
	navTimer    *time.Timer
	resetTimer  *time.Timer
	current     chan State
	subscribers map[int]chan State
	nextSub     int

	// notifyMu serializes publishing so observers and channels see
	// transitions in the order they were applied. It is always taken
	// before mu, and mu is never held while waiting for it.
	notifyMu sync.Mutex

	wg sync.WaitGroup
}

// NewCoordinator creates an idle coordinator.
func NewCoordinator(uploader Uploader, cfg Config, opts ...Option) *Coordinator {
	def := DefaultConfig()
	if cfg.NavigateDelay <= 0 {
		cfg.NavigateDelay = def.NavigateDelay
	}
	if cfg.ResetDelay <= 0 {
		cfg.ResetDelay = def.ResetDelay
	}
	if cfg.MaxTitleLength <= 0 {
		cfg.MaxTitleLength = def.MaxTitleLength
	}
	if cfg.NavigateRoute == "" {
		cfg.NavigateRoute = def.NavigateRoute
	}

	c := &Coordinator{
		uploader:    uploader,
		cfg:         cfg,
		logger:      logging.NewNopLogger(),
		tracer:      observability.NewTracer(),
		now:         time.Now,
		state:       IdleState(),
		subscribers: make(map[int]chan State),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = c.logger.With(logging.F("component", "upload_coordinator"))
	return c
}

// Config returns the effective configuration.
func (c *Coordinator) Config() Config {
	return c.cfg
}

// Snapshot returns the current state.
func (c *Coordinator) Snapshot() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Subscribe returns a channel receiving every state from now on, starting
// with the current one, and a function that ends the subscription. A slow
// subscriber misses states rather than blocking uploads.
func (c *Coordinator) Subscribe() (<-chan State, func()) {
	c.mu.Lock()
	defer c.mu.Unlock()

	ch := make(chan State, subscriberBuffer)
	if c.closed {
		close(ch)
		return ch, func() {}
	}

	id := c.nextSub
	c.nextSub++
	c.subscribers[id] = ch
	ch <- c.state

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			c.notifyMu.Lock()
			defer c.notifyMu.Unlock()
			c.mu.Lock()
			sub, ok := c.subscribers[id]
			delete(c.subscribers, id)
			c.mu.Unlock()
			if ok {
				close(sub)
			}
		})
	}
}

// Start validates req, moves to the uploading stage and sends the request
// in the background. The returned channel receives this upload's states,
// starting with uploading, and is closed once the upload is reset,
// superseded or the coordinator closes.
//
// The request runs under ctx; cancelling it fails the upload.
func (c *Coordinator) Start(ctx context.Context, req Request) (<-chan State, error) {
	if err := req.Validate(c.cfg.MaxTitleLength); err != nil {
		return nil, err
	}

	id := uuid.NewString()
	ch := make(chan State, 8)

	c.notifyMu.Lock()
	defer c.notifyMu.Unlock()

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil, ErrClosed
	}

	prev := c.state
	next, err := Reduce(prev, Action{
		Kind:     ActionStart,
		UploadID: id,
		FileName: req.FileName,
		Title:    req.Title,
		At:       c.now(),
	})
	if err != nil {
		c.mu.Unlock()
		c.logger.WithContext(ctx).Warn("Upload rejected",
			logging.F("file_name", req.FileName),
			logging.F("current_upload_id", prev.UploadID),
			logging.Err(err))
		return nil, err
	}

	c.stopTimersLocked()
	if c.cancel != nil {
		c.cancel()
	}
	superseded := c.current
	c.current = ch
	c.state = next
	subs := c.subscribersLocked()

	runCtx, cancel := context.WithCancel(ctx)
	c.cancel = cancel
	c.wg.Add(1)
	c.mu.Unlock()

	if superseded != nil {
		close(superseded)
	}
	c.deliver(ctx, prev, next, ch, false, subs)

	c.logger.WithContext(ctx).Info("Upload started",
		logging.F("upload_id", id),
		logging.F("file_name", req.FileName),
		logging.F("title", req.Title))

	go c.run(runCtx, id, req)
	return ch, nil
}

// Dismiss clears a completed or failed upload early and cancels its pending
// navigation and reset. In any other state it does nothing and returns false.
func (c *Coordinator) Dismiss() bool {
	c.mu.Lock()
	if !c.state.Stage.Terminal() {
		c.mu.Unlock()
		return false
	}
	c.stopTimersLocked()
	id := c.state.UploadID
	c.mu.Unlock()

	_, err := c.apply(context.Background(), Action{Kind: ActionReset, UploadID: id})
	return err == nil
}

// Close cancels any in-flight request and pending timers, closes every
// channel and waits for background work to finish. Further Starts fail.
func (c *Coordinator) Close() error {
	c.notifyMu.Lock()
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		c.notifyMu.Unlock()
		return nil
	}
	c.closed = true
	c.stopTimersLocked()
	if c.cancel != nil {
		c.cancel()
	}
	current := c.current
	c.current = nil
	subs := c.subscribers
	c.subscribers = make(map[int]chan State)
	c.mu.Unlock()

	if current != nil {
		close(current)
	}
	for _, ch := range subs {
		close(ch)
	}
	c.notifyMu.Unlock()

	c.wg.Wait()
	return nil
}

// run performs the single network call and walks the stages around it.
func (c *Coordinator) run(ctx context.Context, id string, req Request) {
	defer c.wg.Done()

	ctx, span := c.tracer.StartUploadSpan(ctx, id, req.FileName)
	defer span.End()
	helper := observability.NewSpanHelper(span)
	log := c.logger.WithContext(ctx).With(logging.F("upload_id", id))

	fail := func(err error) {
		helper.SetError(err, string(smerrors.CodeOf(err)))
		log.Warn("Upload failed", logging.Err(err))
		_, _ = c.apply(ctx, Action{Kind: ActionFailed, UploadID: id, Err: err.Error()})
	}

	if _, err := c.apply(ctx, Action{Kind: ActionSending, UploadID: id}); err != nil {
		return
	}
	helper.SetStage(string(StageSTT))

	body, err := c.uploader.PostScript(ctx, req.Title, req.FileName, req.Body)
	if err != nil {
		fail(err)
		return
	}

	if _, err := c.apply(ctx, Action{Kind: ActionReceived, UploadID: id}); err != nil {
		return
	}
	helper.SetStage(string(StageScript))

	if !json.Valid(body) {
		fail(smerrors.NewDecodeError("transcript", "create_script", fmt.Errorf("response is not valid JSON")))
		return
	}

	if _, err := c.apply(ctx, Action{Kind: ActionAnalyzing, UploadID: id}); err != nil {
		return
	}
	if _, err := c.apply(ctx, Action{Kind: ActionCompleted, UploadID: id, Result: json.RawMessage(body)}); err != nil {
		return
	}
	helper.SetSuccess()
	log.Info("Upload completed", logging.F("meeting_id", ResultMeetingID(body)))

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed || c.state.UploadID != id {
		return
	}
	c.navTimer = time.AfterFunc(c.cfg.NavigateDelay, func() { c.navigate(id) })
}

// navigate fires once per successful upload, then schedules the reset.
func (c *Coordinator) navigate(id string) {
	ctx := context.Background()
	if _, err := c.apply(ctx, Action{Kind: ActionNavigated, UploadID: id}); err != nil {
		return
	}

	if c.navigator != nil {
		if err := c.navigator.Navigate(ctx, c.cfg.NavigateRoute); err != nil {
			c.logger.Warn("Navigation after upload failed",
				logging.F("upload_id", id),
				logging.F("route", c.cfg.NavigateRoute),
				logging.Err(err))
		}
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed || c.state.UploadID != id {
		return
	}
	c.resetTimer = time.AfterFunc(c.cfg.ResetDelay, func() {
		_, _ = c.apply(context.Background(), Action{Kind: ActionReset, UploadID: id})
	})
}

// apply reduces a against the current state and publishes the result.
func (c *Coordinator) apply(ctx context.Context, a Action) (State, error) {
	if a.At.IsZero() {
		a.At = c.now()
	}

	c.notifyMu.Lock()
	defer c.notifyMu.Unlock()

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return State{}, ErrClosed
	}
	prev := c.state
	next, err := Reduce(prev, a)
	if err != nil {
		c.mu.Unlock()
		c.logger.Debug("Upload action dropped",
			logging.F("action", string(a.Kind)),
			logging.F("upload_id", a.UploadID),
			logging.Err(err))
		return prev, err
	}
	c.state = next
	if a.Kind == ActionReset {
		c.stopTimersLocked()
		if c.cancel != nil {
			c.cancel()
			c.cancel = nil
		}
	}
	ch := c.current
	closeAfter := next.Stage == StageIdle
	if closeAfter {
		c.current = nil
	}
	subs := c.subscribersLocked()
	c.mu.Unlock()

	c.deliver(ctx, prev, next, ch, closeAfter, subs)
	return next, nil
}

func (c *Coordinator) subscribersLocked() []chan State {
	subs := make([]chan State, 0, len(c.subscribers))
	for _, sub := range c.subscribers {
		subs = append(subs, sub)
	}
	return subs
}

// deliver must be called with notifyMu held and mu released, so observers
// never hold up Snapshot.
func (c *Coordinator) deliver(ctx context.Context, prev, next State, ch chan State, closeAfter bool, subs []chan State) {
	for _, o := range c.observers {
		o.OnTransition(ctx, prev, next)
	}

	if ch != nil {
		select {
		case ch <- next:
		default:
			c.logger.Warn("Upload channel full, state dropped", logging.F("stage", string(next.Stage)))
		}
		if closeAfter {
			close(ch)
		}
	}

	for _, sub := range subs {
		select {
		case sub <- next:
		default:
		}
	}
}

func (c *Coordinator) stopTimersLocked() {
	if c.navTimer != nil {
		c.navTimer.Stop()
		c.navTimer = nil
	}
	if c.resetTimer != nil {
		c.resetTimer.Stop()
		c.resetTimer = nil
	}
}

// ResultMeetingID extracts script_id (or id) from an upload result body.
func ResultMeetingID(result []byte) string {
	var ids struct {
		ScriptID string `json:"script_id"`
		ID       string `json:"id"`
	}
	if err := json.Unmarshal(result, &ids); err != nil {
		return ""
	}
	if ids.ScriptID != "" {
		return ids.ScriptID
	}
	return ids.ID
}
