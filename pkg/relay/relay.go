// Package relay turns a session's broadcast stream into paragraphs in one
// listener's language.
//
// Each listener owns a Relay. Incoming buffers replace the previous one;
// translation runs on a single worker goroutine (Run) so at most one
// outbound call is in flight per listener. A newer buffer cancels that call
// and buffers arriving meanwhile are coalesced, so only the latest one is
// translated. A generation counter makes sure only the most recently
// requested result ever reaches the renderer.
package relay

import (
	"context"
	"encoding/json"
	"errors"
	"sync"

	"live-relay-be/internal/errs"
	"live-relay-be/internal/pkg/logger"
	"live-relay-be/pkg/translator"
)

const (
	MessageTranslation = "translation"
	MessageReady       = "ready"
)

// Message is what a broadcaster emits: the whole current buffer, not a delta.
type Message struct {
	Type       string `json:"type"`
	Text       string `json:"text"`
	SourceLang string `json:"sourceLang"`
}

// Frame is a render of the relay state.
type Frame struct {
	Paragraphs       []string
	IsTranslating    bool
	TargetLang       string
	BroadcasterReady bool
}

// Source delivers raw broadcast payloads of one session until unsubscribed.
type Source interface {
	Subscribe(sessionId string, handler func(data []byte)) (unsubscribe func() error, err error)
}

type job struct {
	generation uint64
	ctx        context.Context
	text       string
	sourceLang string
	targetLang string
}

type Relay struct {
	translator translator.Translator
	cache      *Cache
	render     func(Frame)
	logger     logger.ILogger

	// renderMu serializes state change and render so frames reach the
	// renderer in the order the state changed. Lock order: renderMu, mu.
	renderMu sync.Mutex

	mu            sync.Mutex
	sourceText    string
	sourceLang    string
	targetLang    string
	paragraphs    []string
	isTranslating bool
	ready         bool
	generation    uint64
	inFlight      uint64
	cancel        context.CancelFunc
	pending       bool
	closed        bool

	wake      chan struct{}
	done      chan struct{}
	closeOnce sync.Once
}

// New builds a relay. render is called synchronously and must not call
// back into the relay.
func New(t translator.Translator, targetLang string, render func(Frame), log logger.ILogger) *Relay {
	return &Relay{
		translator: t,
		cache:      NewCache(),
		render:     render,
		logger:     log,
		targetLang: targetLang,
		paragraphs: []string{},
		wake:       make(chan struct{}, 1),
		done:       make(chan struct{}),
	}
}

// Consume feeds every payload from source into the relay.
func (r *Relay) Consume(source Source, sessionId string) (func() error, error) {
	return source.Subscribe(sessionId, func(data []byte) {
		var msg Message
		if err := json.Unmarshal(data, &msg); err != nil {
			r.logger.Warn("RELAY", "Dropping malformed broadcast message", map[string]interface{}{
				"session_id": sessionId,
				"error":      err.Error(),
			})
			return
		}
		r.OnMessage(msg)
	})
}

func (r *Relay) OnMessage(msg Message) {
	r.renderMu.Lock()
	defer r.renderMu.Unlock()

	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return
	}

	switch msg.Type {
	case MessageReady:
		r.ready = true
	case MessageTranslation:
		r.sourceText = msg.Text
		r.sourceLang = msg.SourceLang
		r.requestLocked()
	default:
		r.mu.Unlock()
		r.logger.Debug("RELAY", "Ignoring unknown message type", map[string]interface{}{"type": msg.Type})
		return
	}

	frame := r.frameLocked()
	r.mu.Unlock()
	r.render(frame)
}

// SetTargetLang switches the listener's language and re-translates the
// current buffer.
func (r *Relay) SetTargetLang(lang string) {
	r.renderMu.Lock()
	defer r.renderMu.Unlock()

	r.mu.Lock()
	if r.closed || lang == r.targetLang {
		r.mu.Unlock()
		return
	}
	r.targetLang = lang
	r.requestLocked()
	frame := r.frameLocked()
	r.mu.Unlock()
	r.render(frame)
}

// requestLocked supersedes whatever was requested before and either
// renders directly (same language, cache hit) or queues work for Run.
func (r *Relay) requestLocked() {
	r.generation++
	if r.cancel != nil {
		r.cancel()
		r.cancel = nil
	}

	if r.sourceText == "" {
		r.paragraphs = []string{}
		r.isTranslating = false
		r.pending = false
		return
	}

	if r.targetLang == "" || r.targetLang == r.sourceLang {
		r.paragraphs = Paragraphs(r.sourceText)
		r.isTranslating = false
		r.pending = false
		return
	}

	if cached, ok := r.cache.Get(r.sourceLang, r.targetLang, r.sourceText); ok {
		r.paragraphs = Paragraphs(cached)
		r.isTranslating = false
		r.pending = false
		return
	}

	r.isTranslating = true
	r.pending = true
	select {
	case r.wake <- struct{}{}:
	default:
	}
}

func (r *Relay) frameLocked() Frame {
	return Frame{
		Paragraphs:       r.paragraphs,
		IsTranslating:    r.isTranslating,
		TargetLang:       r.targetLang,
		BroadcasterReady: r.ready,
	}
}

// Run executes queued translations until ctx is done or Close is called.
func (r *Relay) Run(ctx context.Context) {
	defer r.Close()

	for {
		select {
		case <-ctx.Done():
			return
		case <-r.done:
			return
		case <-r.wake:
		}

		for {
			j, ok := r.next(ctx)
			if !ok {
				break
			}
			r.execute(j)
		}
	}
}

func (r *Relay) next(parent context.Context) (job, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed || !r.pending {
		return job{}, false
	}
	r.pending = false

	ctx, cancel := context.WithCancel(parent)
	r.cancel = cancel
	r.inFlight = r.generation

	return job{
		generation: r.generation,
		ctx:        ctx,
		text:       r.sourceText,
		sourceLang: r.sourceLang,
		targetLang: r.targetLang,
	}, true
}

func (r *Relay) execute(j job) {
	translated, err := r.translator.Translate(j.ctx, j.text, j.sourceLang, j.targetLang)

	if err == nil {
		r.cache.Set(j.sourceLang, j.targetLang, j.text, translated)
	}

	r.renderMu.Lock()
	defer r.renderMu.Unlock()

	r.mu.Lock()
	if r.inFlight == j.generation && r.cancel != nil {
		r.cancel()
		r.cancel = nil
	}
	if r.closed || j.generation != r.generation {
		r.mu.Unlock()
		return
	}

	switch {
	case err == nil:
		r.paragraphs = Paragraphs(translated)
	case errors.Is(err, errs.ErrCancelled) || errors.Is(err, context.Canceled):
		r.mu.Unlock()
		return
	default:
		r.logger.Warn("RELAY", "Translation failed, showing source text", map[string]interface{}{
			"source_lang": j.sourceLang,
			"target_lang": j.targetLang,
			"error":       err.Error(),
		})
		r.paragraphs = Paragraphs(j.text)
	}
	r.isTranslating = false
	frame := r.frameLocked()
	r.mu.Unlock()
	r.render(frame)
}

// Close cancels the in-flight request and stops the worker. Later messages
// are ignored.
func (r *Relay) Close() {
	r.mu.Lock()
	r.closed = true
	r.pending = false
	if r.cancel != nil {
		r.cancel()
		r.cancel = nil
	}
	r.mu.Unlock()

	r.closeOnce.Do(func() { close(r.done) })
}

// Snapshot returns the current render state.
func (r *Relay) Snapshot() Frame {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.frameLocked()
}
