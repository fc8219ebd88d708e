// Package surfacetest provides an in-memory controller for surface tests.
package surfacetest

import (
	"context"
	"sync"

	"callsync/internal/checklist"
	"callsync/internal/errs"
	"callsync/internal/session"
)

// Controller 记录调用并按简化状态机迁移 / Controller records calls and follows a reduced state machine
type Controller struct {
	mu        sync.Mutex
	view      session.View
	model     *checklist.Model
	calls     []string
	observers map[int]func(session.Event)
	next      int

	// Err, when set, is returned by the next mutating call and then cleared.
	Err error
	// Block, when set, holds Process until it is closed or ctx ends.
	Block chan struct{}
}

func New() *Controller {
	return &Controller{model: checklist.NewModel(), observers: map[int]func(session.Event){}}
}

// Calls returns the operations invoked so far.
func (c *Controller) Calls() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.calls...)
}

// SetView replaces the snapshot returned by View.
func (c *Controller) SetView(v session.View) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.view = v
}

// Emit delivers ev to every subscriber.
func (c *Controller) Emit(ev session.Event) {
	c.mu.Lock()
	obs := make([]func(session.Event), 0, len(c.observers))
	for _, fn := range c.observers {
		obs = append(obs, fn)
	}
	c.mu.Unlock()
	for _, fn := range obs {
		fn(ev)
	}
}

func (c *Controller) do(op string, from []session.State, to session.State) error {
	c.mu.Lock()
	c.calls = append(c.calls, op)
	if err := c.Err; err != nil {
		c.Err = nil
		c.mu.Unlock()
		return err
	}
	ok := from == nil
	for _, s := range from {
		if c.view.State == s {
			ok = true
		}
	}
	if !ok {
		s := c.view.State
		c.mu.Unlock()
		return errs.New(errs.KindInvalidState, op, "not allowed while "+s.String())
	}
	c.view.State = to
	c.mu.Unlock()
	c.Emit(session.Event{Kind: session.EventState, State: to})
	return nil
}

func (c *Controller) Start(context.Context) error {
	return c.do("start", []session.State{session.Idle, session.Stopped, session.Ready, session.Uploaded, session.Failed}, session.Recording)
}

func (c *Controller) Pause() error {
	return c.do("pause", []session.State{session.Recording}, session.Paused)
}

func (c *Controller) Resume() error {
	return c.do("resume", []session.State{session.Paused}, session.Recording)
}

func (c *Controller) Stop() error {
	return c.do("stop", []session.State{session.Recording, session.Paused}, session.Stopped)
}

func (c *Controller) Reset() {
	c.mu.Lock()
	c.calls = append(c.calls, "reset")
	c.view = session.View{}
	c.model.Reset()
	c.mu.Unlock()
	c.Emit(session.Event{Kind: session.EventState, State: session.Idle})
}

func (c *Controller) Process(ctx context.Context) error {
	c.mu.Lock()
	block := c.Block
	c.mu.Unlock()
	if block != nil {
		select {
		case <-block:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	if err := c.do("process", []session.State{session.Stopped, session.Failed}, session.Ready); err != nil {
		return err
	}
	c.mu.Lock()
	c.view.Summary = "## Résumé\n- point"
	c.mu.Unlock()
	return nil
}

func (c *Controller) Upload(context.Context) error {
	c.mu.Lock()
	linked := c.view.DealID != 0
	c.mu.Unlock()
	if !linked {
		c.mu.Lock()
		c.calls = append(c.calls, "upload")
		c.mu.Unlock()
		return errs.New(errs.KindPreconditionFailed, "upload", "no record selected")
	}
	return c.do("upload", []session.State{session.Ready}, session.Uploaded)
}

func (c *Controller) LinkRecord(_ context.Context, dealID int64, dealName string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls = append(c.calls, "link")
	if c.view.State == session.Idle {
		return errs.New(errs.KindInvalidState, "link", "not allowed while idle")
	}
	c.view.DealID = dealID
	c.view.DealName = dealName
	return nil
}

func (c *Controller) ToggleChecklist(_ context.Context, itemID string) (checklist.Item, error) {
	c.mu.Lock()
	c.calls = append(c.calls, "check")
	c.mu.Unlock()
	it, err := c.model.Toggle(itemID)
	if err != nil {
		return checklist.Item{}, errs.Wrap(errs.KindPreconditionFailed, "check", err)
	}
	return it, nil
}

func (c *Controller) EditSummary(_ context.Context, text string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls = append(c.calls, "summary")
	if c.view.State != session.Ready {
		return errs.New(errs.KindInvalidState, "edit summary", "not allowed while "+c.view.State.String())
	}
	c.view.Summary = text
	return nil
}

func (c *Controller) View() session.View {
	c.mu.Lock()
	defer c.mu.Unlock()
	v := c.view
	v.Checklist = c.model.Items()
	return v
}

func (c *Controller) Subscribe(fn func(session.Event)) func() {
	c.mu.Lock()
	defer c.mu.Unlock()
	id := c.next
	c.next++
	c.observers[id] = fn
	return func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		delete(c.observers, id)
	}
}
