package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/veranemoloko/app-installer/internal/domain"
	errpkg "github.com/veranemoloko/app-installer/internal/errors"
	"github.com/veranemoloko/app-installer/internal/metrics"
)

// PipelineRunner runs one installation and reports its progress.
type PipelineRunner interface {
	Run(ctx context.Context, app domain.App, report domain.ProgressFunc) (domain.InstallOutcome, error)
}

// LibraryRecorder records successful installations.
type LibraryRecorder interface {
	Install(ctx context.Context, app *domain.InstalledApp) error
}

// RunRecorder keeps the history of pipeline invocations.
type RunRecorder interface {
	Save(run *domain.RunRecord) error
	List() []*domain.RunRecord
}

// Invocation is a handle to one accepted install request.
type Invocation struct {
	ID    uint64
	RunID string

	done    chan struct{}
	outcome domain.InstallOutcome
	err     error
}

// Done is closed when the pipeline run has finished.
func (i *Invocation) Done() <-chan struct{} {
	return i.done
}

// Wait blocks until the run finishes and returns its result.
func (i *Invocation) Wait(ctx context.Context) (domain.InstallOutcome, error) {
	select {
	case <-i.done:
		return i.outcome, i.err
	case <-ctx.Done():
		return domain.InstallOutcome{}, ctx.Err()
	}
}

// InstallOption customizes an Install call.
type InstallOption func(*installOptions)

type installOptions struct {
	listeners []domain.ProgressFunc
}

// WithListener registers fn for the app's progress events as part of starting the install.
func WithListener(fn domain.ProgressFunc) InstallOption {
	return func(o *installOptions) {
		o.listeners = append(o.listeners, fn)
	}
}

type eventType int

const (
	eventInstall eventType = iota
	eventProgress
	eventFinished
	eventDismiss
	eventCancel
	eventAddListener
	eventSubscribe
	eventUnsubscribe
	eventShutdown
)

type sessionEvent struct {
	Type         eventType
	InvocationID uint64
	App          domain.App
	Listeners    []domain.ProgressFunc
	Progress     domain.ProgressEvent
	Outcome      domain.InstallOutcome
	Err          error
	Subscriber   chan domain.SessionState
	reply        chan eventReply
}

type eventReply struct {
	invocation *Invocation
	ok         bool
	err        error
}

type notification struct {
	listeners []domain.ProgressFunc
	event     domain.ProgressEvent
}

const subscriberBuffer = 16

// SessionManager owns the process-wide installation session. Every state
// change happens on a single event loop goroutine. Listeners are called in
// order on a separate notification goroutine, so a slow listener never
// stalls the pipeline.
type SessionManager struct {
	pipeline PipelineRunner
	library  LibraryRecorder
	runs     RunRecorder
	logger   *slog.Logger

	eventChan    chan sessionEvent
	shutdownChan chan struct{}
	shutdownOnce sync.Once
	loopWG       sync.WaitGroup
	runWG        sync.WaitGroup
	snapshot     atomic.Pointer[domain.SessionState]

	notifyMu     sync.Mutex
	notifyQueue  []notification
	notifyClosed bool
	notifySignal chan struct{}

	// Owned by the event loop.
	baseCtx     context.Context
	cancelAll   context.CancelFunc
	closing     bool
	lastID      uint64
	state       domain.SessionState
	active      *Invocation
	activeApp   domain.App
	activeRun   *domain.RunRecord
	cancelRun   context.CancelFunc
	startedAt   time.Time
	listeners   map[string][]domain.ProgressFunc
	subscribers map[chan domain.SessionState]struct{}
}

// NewSessionManager creates a SessionManager in the IDLE phase and starts its event loop.
func NewSessionManager(pipeline PipelineRunner, library LibraryRecorder, runs RunRecorder, logger *slog.Logger) *SessionManager {
	baseCtx, cancelAll := context.WithCancel(context.Background())

	m := &SessionManager{
		pipeline:     pipeline,
		library:      library,
		runs:         runs,
		logger:       logger,
		eventChan:    make(chan sessionEvent, 100),
		notifySignal: make(chan struct{}, 1),
		shutdownChan: make(chan struct{}),
		baseCtx:      baseCtx,
		cancelAll:    cancelAll,
		state:        idleState(),
		listeners:    make(map[string][]domain.ProgressFunc),
		subscribers:  make(map[chan domain.SessionState]struct{}),
	}
	m.publish()

	m.loopWG.Add(2)
	go m.eventProcessor()
	go m.notifier()

	return m
}

// Install starts installing app. It fails with ErrConcurrentInstall unless the
// session is IDLE.
func (m *SessionManager) Install(ctx context.Context, app domain.App, opts ...InstallOption) (*Invocation, error) {
	var o installOptions
	for _, opt := range opts {
		opt(&o)
	}

	reply, err := m.request(ctx, sessionEvent{Type: eventInstall, App: app, Listeners: o.listeners})
	if err != nil {
		return nil, err
	}
	return reply.invocation, reply.err
}

// AddListener registers fn for progress of appID. It reports false unless
// appID is the app currently being installed.
func (m *SessionManager) AddListener(appID string, fn domain.ProgressFunc) bool {
	reply, err := m.request(context.Background(), sessionEvent{
		Type:      eventAddListener,
		App:       domain.App{ID: appID},
		Listeners: []domain.ProgressFunc{fn},
	})
	return err == nil && reply.ok
}

// Dismiss returns a COMPLETED or FAILED session to IDLE and clears all
// listeners. It reports whether the state changed.
func (m *SessionManager) Dismiss() bool {
	reply, err := m.request(context.Background(), sessionEvent{Type: eventDismiss})
	return err == nil && reply.ok
}

// Cancel cancels the active pipeline run. The session then ends in FAILED.
func (m *SessionManager) Cancel() bool {
	reply, err := m.request(context.Background(), sessionEvent{Type: eventCancel})
	return err == nil && reply.ok
}

// State returns the current session snapshot.
func (m *SessionManager) State() domain.SessionState {
	return *m.snapshot.Load()
}

// Subscribe returns a channel receiving every new session snapshot, starting
// with the current one. A slow subscriber only misses intermediate snapshots.
// The returned function ends the subscription.
func (m *SessionManager) Subscribe() (<-chan domain.SessionState, func()) {
	ch := make(chan domain.SessionState, subscriberBuffer)
	if _, err := m.request(context.Background(), sessionEvent{Type: eventSubscribe, Subscriber: ch}); err != nil {
		close(ch)
		return ch, func() {}
	}

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			_, _ = m.request(context.Background(), sessionEvent{Type: eventUnsubscribe, Subscriber: ch})
		})
	}
}

// Runs returns the run history, newest first.
func (m *SessionManager) Runs() []*domain.RunRecord {
	return m.runs.List()
}

// Shutdown cancels the active run, waits for it to be recorded and stops the event loop.
func (m *SessionManager) Shutdown(ctx context.Context) error {
	m.logger.Info("shutting down session manager")

	if _, err := m.request(ctx, sessionEvent{Type: eventShutdown}); err != nil && !errors.Is(err, errpkg.ErrServiceShutdown) {
		return err
	}

	done := make(chan struct{})
	go func() {
		m.runWG.Wait()
		m.shutdownOnce.Do(func() { close(m.shutdownChan) })
		m.loopWG.Wait()
		close(done)
	}()

	select {
	case <-done:
		m.logger.Info("session manager shutdown completed")
		return nil
	case <-ctx.Done():
		m.logger.Warn("session manager shutdown timed out")
		return ctx.Err()
	}
}

func (m *SessionManager) request(ctx context.Context, ev sessionEvent) (eventReply, error) {
	ev.reply = make(chan eventReply, 1)

	select {
	case m.eventChan <- ev:
	case <-m.shutdownChan:
		return eventReply{}, errpkg.ErrServiceShutdown
	case <-ctx.Done():
		return eventReply{}, ctx.Err()
	}

	select {
	case reply := <-ev.reply:
		return reply, nil
	case <-m.shutdownChan:
		return eventReply{}, errpkg.ErrServiceShutdown
	case <-ctx.Done():
		return eventReply{}, ctx.Err()
	}
}

// report forwards a pipeline event to the event loop. Download progress is
// dropped rather than blocking the pipeline when the loop is behind.
func (m *SessionManager) report(id uint64, event domain.ProgressEvent) {
	ev := sessionEvent{Type: eventProgress, InvocationID: id, Progress: event}

	if isDownloadProgress(event) {
		select {
		case m.eventChan <- ev:
		default:
		}
		return
	}

	select {
	case m.eventChan <- ev:
	case <-m.shutdownChan:
	}
}

func (m *SessionManager) runPipeline(ctx context.Context, inv *Invocation, app domain.App) {
	defer m.runWG.Done()

	start := time.Now()
	outcome, err := m.pipeline.Run(ctx, app, func(event domain.ProgressEvent) {
		m.report(inv.ID, event)
	})
	metrics.InstallDuration.Observe(time.Since(start).Seconds())

	select {
	case m.eventChan <- sessionEvent{Type: eventFinished, InvocationID: inv.ID, Outcome: outcome, Err: err}:
	case <-m.shutdownChan:
	}
}

func (m *SessionManager) eventProcessor() {
	defer m.loopWG.Done()
	defer m.closeNotifications()
	defer m.closeSubscribers()

	for {
		select {
		case ev := <-m.eventChan:
			m.handle(ev)
		case <-m.shutdownChan:
			for {
				select {
				case ev := <-m.eventChan:
					m.handle(ev)
				default:
					return
				}
			}
		}
	}
}

func (m *SessionManager) handle(ev sessionEvent) {
	var reply eventReply

	switch ev.Type {
	case eventInstall:
		reply = m.start(ev.App, ev.Listeners)

	case eventProgress:
		m.progress(ev.InvocationID, ev.Progress)

	case eventFinished:
		m.finish(ev.InvocationID, ev.Outcome, ev.Err)

	case eventDismiss:
		if m.state.Phase == domain.PhaseCompleted || m.state.Phase == domain.PhaseFailed {
			m.state = idleState()
			m.listeners = make(map[string][]domain.ProgressFunc)
			m.publish()
			reply.ok = true
		}

	case eventCancel:
		if m.state.Phase == domain.PhaseActive && m.cancelRun != nil {
			m.logger.Info("cancelling installation", "app_id", m.state.AppID, "invocation_id", m.state.InvocationID)
			m.cancelRun()
			reply.ok = true
		}

	case eventAddListener:
		if m.state.Phase == domain.PhaseActive && m.state.AppID == ev.App.ID {
			m.listeners[ev.App.ID] = append(m.listeners[ev.App.ID], ev.Listeners...)
			reply.ok = true
		}

	case eventSubscribe:
		m.subscribers[ev.Subscriber] = struct{}{}
		ev.Subscriber <- m.state

	case eventUnsubscribe:
		if _, ok := m.subscribers[ev.Subscriber]; ok {
			delete(m.subscribers, ev.Subscriber)
			close(ev.Subscriber)
		}

	case eventShutdown:
		m.closing = true
		m.cancelAll()
	}

	if ev.reply != nil {
		ev.reply <- reply
	}
}

func (m *SessionManager) start(app domain.App, listeners []domain.ProgressFunc) eventReply {
	if m.closing {
		return eventReply{err: errpkg.ErrServiceShutdown}
	}
	if m.state.Phase != domain.PhaseIdle {
		metrics.InstallsRejected.Inc()
		m.logger.Warn("install rejected, session is busy",
			"app_id", app.ID,
			"active_app_id", m.state.AppID,
			"phase", m.state.Phase,
		)
		return eventReply{err: errpkg.ErrConcurrentInstall}
	}

	m.lastID++
	inv := &Invocation{
		ID:    m.lastID,
		RunID: uuid.New().String(),
		done:  make(chan struct{}),
	}

	m.active = inv
	m.activeApp = app
	m.startedAt = time.Now()
	m.listeners = map[string][]domain.ProgressFunc{app.ID: listeners}
	m.state = domain.SessionState{
		Phase:        domain.PhaseActive,
		InvocationID: inv.ID,
		RunID:        inv.RunID,
		AppID:        app.ID,
		AppName:      app.Name,
		Message:      "Starting installation...",
		UpdatedAt:    m.startedAt,
	}
	m.activeRun = &domain.RunRecord{
		ID:           inv.RunID,
		InvocationID: inv.ID,
		AppID:        app.ID,
		AppName:      app.Name,
		Status:       domain.RunStatusInProgress,
		StartedAt:    m.startedAt,
	}
	m.saveRun()
	m.publish()

	runCtx, cancel := context.WithCancel(m.baseCtx)
	m.cancelRun = cancel

	metrics.InstallsStarted.Inc()
	m.logger.Info("installation started",
		"app_id", app.ID,
		"invocation_id", inv.ID,
		"run_id", inv.RunID,
	)

	m.runWG.Add(1)
	go m.runPipeline(runCtx, inv, app)

	return eventReply{invocation: inv}
}

func (m *SessionManager) progress(id uint64, event domain.ProgressEvent) {
	if m.active == nil || id != m.active.ID || m.state.Phase != domain.PhaseActive {
		m.logger.Debug("dropping stale progress event", "invocation_id", id, "stage", event.Stage)
		return
	}

	m.state.Stage = event.Stage
	m.state.Progress = event.Progress
	m.state.Message = event.Message
	m.state.UpdatedAt = time.Now()
	m.publish()
	m.notify(m.state.AppID, event)
}

func (m *SessionManager) finish(id uint64, outcome domain.InstallOutcome, err error) {
	if m.active == nil || id != m.active.ID {
		m.logger.Debug("dropping stale result", "invocation_id", id)
		return
	}

	inv := m.active
	app := m.activeApp
	finishedAt := time.Now()

	if m.cancelRun != nil {
		m.cancelRun()
		m.cancelRun = nil
	}

	if err != nil {
		message := m.state.Message
		if m.state.Stage != domain.StageFailed || message == "" {
			message = fmt.Sprintf("Installation failed: %v", err)
		}

		metrics.InstallsFailed.Inc()
		m.state = domain.SessionState{
			Phase:        domain.PhaseFailed,
			InvocationID: inv.ID,
			RunID:        inv.RunID,
			AppID:        app.ID,
			AppName:      app.Name,
			Stage:        domain.StageFailed,
			Message:      message,
			UpdatedAt:    finishedAt,
		}
		m.activeRun.Status = domain.RunStatusFailed
		m.activeRun.Error = err.Error()
	} else {
		m.recordInstalled(app, outcome)

		metrics.InstallsCompleted.Inc()
		completed := outcome
		m.state = domain.SessionState{
			Phase:        domain.PhaseCompleted,
			InvocationID: inv.ID,
			RunID:        inv.RunID,
			AppID:        app.ID,
			AppName:      app.Name,
			Stage:        domain.StageCompleted,
			Progress:     1,
			Message:      "Installation complete!",
			Outcome:      &completed,
			UpdatedAt:    finishedAt,
		}
		m.activeRun.Status = domain.RunStatusCompleted
		m.activeRun.Outcome = &completed
	}

	m.activeRun.FinishedAt = finishedAt
	m.saveRun()
	m.publish()

	m.logger.Info("installation finished",
		"app_id", app.ID,
		"invocation_id", inv.ID,
		"phase", m.state.Phase,
		"duration", finishedAt.Sub(m.startedAt),
	)

	inv.outcome, inv.err = outcome, err
	close(inv.done)
}

func (m *SessionManager) recordInstalled(app domain.App, outcome domain.InstallOutcome) {
	record := &domain.InstalledApp{
		ID:             app.ID,
		Name:           app.Name,
		Developer:      app.Developer,
		Category:       app.Category,
		Version:        outcome.Version,
		InstalledAt:    time.Now().UTC(),
		SizeBytes:      outcome.SizeBytes,
		InstallPath:    outcome.InstallPath,
		ExecutablePath: outcome.ExecutablePath,
	}
	if err := m.library.Install(context.Background(), record); err != nil {
		m.logger.Error("failed to record installed app",
			"app_id", app.ID,
			"error", err,
		)
	}
}

func (m *SessionManager) saveRun() {
	if err := m.runs.Save(m.activeRun); err != nil {
		m.logger.Error("failed to save run record",
			"run_id", m.activeRun.ID,
			"error", err,
		)
	}
}

// publish stores the current state for State and pushes it to subscribers,
// replacing the oldest buffered snapshot when a subscriber is full.
func (m *SessionManager) publish() {
	snapshot := m.state
	if snapshot.Outcome != nil {
		outcome := *snapshot.Outcome
		snapshot.Outcome = &outcome
	}
	m.snapshot.Store(&snapshot)

	for ch := range m.subscribers {
		select {
		case ch <- snapshot:
			continue
		default:
		}
		select {
		case <-ch:
		default:
		}
		select {
		case ch <- snapshot:
		default:
		}
	}
}

func (m *SessionManager) closeSubscribers() {
	for ch := range m.subscribers {
		close(ch)
	}
	m.subscribers = nil
}

// notify queues event for the app's listeners. A queued download progress
// event is replaced by a newer one instead of growing the queue.
func (m *SessionManager) notify(appID string, event domain.ProgressEvent) {
	listeners := m.listeners[appID]
	if len(listeners) == 0 {
		return
	}
	n := notification{
		listeners: append([]domain.ProgressFunc(nil), listeners...),
		event:     event,
	}

	m.notifyMu.Lock()
	if last := len(m.notifyQueue) - 1; last >= 0 && isDownloadProgress(n.event) && isDownloadProgress(m.notifyQueue[last].event) {
		m.notifyQueue[last] = n
	} else {
		m.notifyQueue = append(m.notifyQueue, n)
	}
	m.notifyMu.Unlock()

	m.wakeNotifier()
}

func (m *SessionManager) closeNotifications() {
	m.notifyMu.Lock()
	m.notifyClosed = true
	m.notifyMu.Unlock()
	m.wakeNotifier()
}

func (m *SessionManager) wakeNotifier() {
	select {
	case m.notifySignal <- struct{}{}:
	default:
	}
}

func (m *SessionManager) notifier() {
	defer m.loopWG.Done()

	for range m.notifySignal {
		m.notifyMu.Lock()
		batch := m.notifyQueue
		m.notifyQueue = nil
		closed := m.notifyClosed
		m.notifyMu.Unlock()

		for _, n := range batch {
			for _, fn := range n.listeners {
				m.callListener(fn, n.event)
			}
		}
		if closed {
			return
		}
	}
}

func (m *SessionManager) callListener(fn domain.ProgressFunc, event domain.ProgressEvent) {
	defer func() {
		if r := recover(); r != nil {
			m.logger.Error("progress listener panicked",
				"stage", event.Stage,
				"panic", r,
			)
		}
	}()
	fn(event)
}

func isDownloadProgress(event domain.ProgressEvent) bool {
	return event.Stage == domain.StageDownloading && event.Progress > 0
}

func idleState() domain.SessionState {
	return domain.SessionState{Phase: domain.PhaseIdle, UpdatedAt: time.Now()}
}
