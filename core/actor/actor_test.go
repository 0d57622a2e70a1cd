package actor

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func newTestActor(t *testing.T, opts Options, hs ...HandlerRegistration) Actor {
	t.Helper()
	if opts.Context == nil {
		opts.Context = t.Context()
	}
	if opts.MailboxSize == 0 {
		opts.MailboxSize = 10_000
	}
	a := New(opts, TypedHandlers(hs...))
	t.Cleanup(a.Stop)
	return a
}

type (
	ping struct{ Seq int }
	pong struct{ Seq int }
)

func TestActor_default(t *testing.T) {
	a := newTestActor(
		t, Options{},
		DefaultHandler(func(hc HandlerCtx, msg any) (any, error) {
			s := "Hello"
			return &s, nil
		}),
	)

	res, err := Request[string, string](t.Context(), a, "Hi!")
	require.NoError(t, err)
	require.NotNil(t, res)
	require.Equal(t, "Hello", *res)
}

func TestActor_no_handler(t *testing.T) {
	a := newTestActor(t, Options{})
	_, err := Request[ping, pong](t.Context(), a, ping{Seq: 1})
	require.ErrorContains(t, err, "no handler for msg")
}

func TestActor_simple_request(t *testing.T) {
	a := newTestActor(
		t, Options{},
		HandleRequest[ping, pong](func(hc HandlerCtx, ping ping) (*pong, error) {
			return &pong{Seq: ping.Seq + 1}, nil
		}),
	)
	res, err := Request[ping, pong](t.Context(), a, ping{Seq: 1})
	require.NoError(t, err)
	require.NotNil(t, res)
	require.Equal(t, 2, res.Seq)
}

func TestActor_tell(t *testing.T) {
	type msg struct{ V int }
	ch := make(chan msg, 1)
	a := newTestActor(
		t, Options{},
		HandleMsg[msg](func(hc HandlerCtx, msg msg) error {
			ch <- msg
			return nil
		}),
	)

	require.NoError(t, Tell(t.Context(), a, msg{V: 42}))

	select {
	case <-time.After(time.Second):
		t.Fatal("timeout")
	case m := <-ch:
		require.Equal(t, 42, m.V)
	}
}

func TestActor_tell_does_not_wait_for_handler(t *testing.T) {
	type msg struct{}
	release := make(chan struct{})
	a := newTestActor(
		t, Options{},
		HandleMsg[msg](func(hc HandlerCtx, _ msg) error {
			<-release
			return nil
		}),
	)
	defer close(release)

	ctx, cancel := context.WithTimeout(t.Context(), time.Second)
	defer cancel()
	require.NoError(t, Tell(ctx, a, msg{}))
	require.NoError(t, Tell(ctx, a, msg{}))
}

func TestActor_tell_err_goes_to_on_error(t *testing.T) {
	type msg struct{ V int }
	failures := make(chan Failure, 1)
	a := newTestActor(
		t,
		Options{ID: "failing", OnError: func(f Failure) { failures <- f }},
		HandleMsg[msg](func(hc HandlerCtx, msg msg) error {
			return fmt.Errorf("uups")
		}),
	)

	require.NoError(t, Tell(t.Context(), a, msg{V: 42}, WithMessageID("m-1")))

	select {
	case <-time.After(time.Second):
		t.Fatal("timeout")
	case f := <-failures:
		require.Equal(t, "failing", f.ActorID)
		require.Equal(t, "m-1", f.MsgID)
		require.ErrorContains(t, f.Err, "uups")
	}
}

func TestActor_request_err(t *testing.T) {
	errBoom := errors.New("boom")
	a := newTestActor(
		t, Options{},
		HandleRequest[ping, pong](func(hc HandlerCtx, _ ping) (*pong, error) {
			return nil, errBoom
		}),
	)
	_, err := Request[ping, pong](t.Context(), a, ping{})
	require.ErrorIs(t, err, errBoom)
}

func TestActor_mailbox_order(t *testing.T) {
	type add struct{ V int }
	type get struct{}

	var seen []int // only touched by handlers
	a := newTestActor(
		t, Options{},
		HandleMsg[add](func(hc HandlerCtx, m add) error {
			seen = append(seen, m.V)
			return nil
		}),
		HandleRequest[get, []int](func(hc HandlerCtx, _ get) (*[]int, error) {
			out := append([]int(nil), seen...)
			return &out, nil
		}),
	)

	for i := range 100 {
		require.NoError(t, Tell(t.Context(), a, add{V: i}))
	}
	res, err := Request[get, []int](t.Context(), a, get{})
	require.NoError(t, err)
	require.Len(t, *res, 100)
	for i, v := range *res {
		require.Equal(t, i, v)
	}
}

func TestActor_sequential(t *testing.T) {
	type work struct{}
	var (
		mu       sync.Mutex
		running  int
		overlaps int
	)
	a := newTestActor(
		t, Options{},
		HandleRequest[work, struct{}](func(hc HandlerCtx, _ work) (*struct{}, error) {
			mu.Lock()
			running++
			if running > 1 {
				overlaps++
			}
			mu.Unlock()
			time.Sleep(time.Millisecond)
			mu.Lock()
			running--
			mu.Unlock()
			return &struct{}{}, nil
		}),
	)

	var wg sync.WaitGroup
	for range 20 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := Request[work, struct{}](t.Context(), a, work{})
			require.NoError(t, err)
		}()
	}
	wg.Wait()
	require.Zero(t, overlaps)
}

func TestActor_request_timeout_drops_reply(t *testing.T) {
	release := make(chan struct{})
	handled := make(chan struct{})
	m := &countingMetrics{}
	a := newTestActor(
		t, Options{Metrics: m},
		HandleRequest[ping, pong](func(hc HandlerCtx, p ping) (*pong, error) {
			if p.Seq == 1 {
				<-release
				defer close(handled)
			}
			return &pong{Seq: p.Seq}, nil
		}),
	)

	_, err := Request[ping, pong](t.Context(), a, ping{Seq: 1}, WithTimeout(20*time.Millisecond))
	require.ErrorIs(t, err, ErrRequestTimeout)

	close(release)
	<-handled

	// the actor keeps working and the late reply never leaks into this request
	res, err := Request[ping, pong](t.Context(), a, ping{Seq: 2})
	require.NoError(t, err)
	require.Equal(t, 2, res.Seq)
	require.Equal(t, 1, m.dropped())
}

func TestActor_panic_is_contained(t *testing.T) {
	panics := make(chan any, 1)
	a := newTestActor(
		t,
		Options{OnPanic: func(r any, _ []byte, _ Envelope) { panics <- r }},
		HandleRequest[ping, pong](func(hc HandlerCtx, p ping) (*pong, error) {
			if p.Seq == 0 {
				panic("zero")
			}
			return &pong{Seq: p.Seq}, nil
		}),
	)

	_, err := Request[ping, pong](t.Context(), a, ping{})
	require.ErrorIs(t, err, ErrHandlerPanic)
	require.Equal(t, "zero", <-panics)

	res, err := Request[ping, pong](t.Context(), a, ping{Seq: 3})
	require.NoError(t, err)
	require.Equal(t, 3, res.Seq)
}

func TestActor_stop(t *testing.T) {
	a := newTestActor(t, Options{})
	a.Stop()
	a.Stop()

	select {
	case <-a.Done():
	case <-time.After(time.Second):
		t.Fatal("Done() should be closed after Stop")
	}
	require.ErrorIs(t, Tell(t.Context(), a, ping{}), ErrActorStopped)
	_, err := Request[ping, pong](t.Context(), a, ping{})
	require.ErrorIs(t, err, ErrActorStopped)
}

func isClosed(a Actor) func() bool {
	return func() bool {
		ba := a.(*BaseActor)
		ba.mu.Lock()
		defer ba.mu.Unlock()
		return ba.closed
	}
}

func TestActor_stop_reports_queued_messages(t *testing.T) {
	type job struct{ N int }
	var (
		started  = make(chan struct{})
		release  = make(chan struct{})
		handled  atomic.Int32
		failures = make(chan Failure, 5)
	)
	a := newTestActor(
		t, Options{OnError: func(f Failure) { failures <- f }},
		HandleMsg[job](func(hc HandlerCtx, j job) error {
			if j.N == 0 {
				close(started)
				<-release
			}
			handled.Add(1)
			return nil
		}),
	)

	for i := range 5 {
		require.NoError(t, Tell(t.Context(), a, job{N: i}))
	}
	<-started

	stopped := make(chan struct{})
	go func() {
		a.Stop()
		close(stopped)
	}()
	require.Eventually(t, isClosed(a), time.Second, time.Millisecond)
	close(release)
	<-stopped

	require.EqualValues(t, 1, handled.Load())
	require.Len(t, failures, 4)
	for range 4 {
		f := <-failures
		require.ErrorIs(t, f.Err, ErrActorStopped)
		require.Equal(t, msgTypeFor[job](), f.MsgType)
	}
	require.ErrorIs(t, Tell(t.Context(), a, job{}), ErrActorStopped)
}

func TestActor_stop_answers_queued_requests(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})
	a := newTestActor(
		t, Options{},
		HandleRequest[ping, pong](func(hc HandlerCtx, p ping) (*pong, error) {
			if p.Seq == 0 {
				close(started)
				<-release
			}
			return &pong{Seq: p.Seq}, nil
		}),
	)

	require.NoError(t, Tell(t.Context(), a, ping{}))
	<-started

	errs := make(chan error, 1)
	go func() {
		_, err := Request[ping, pong](t.Context(), a, ping{Seq: 1})
		errs <- err
	}()
	require.Eventually(t, func() bool { return len(a.(*BaseActor).mailbox) == 1 }, time.Second, time.Millisecond)

	stopped := make(chan struct{})
	go func() {
		a.Stop()
		close(stopped)
	}()
	require.Eventually(t, isClosed(a), time.Second, time.Millisecond)
	close(release)
	<-stopped

	select {
	case err := <-errs:
		require.ErrorIs(t, err, ErrActorStopped)
	case <-time.After(time.Second):
		t.Fatal("queued request was not answered")
	}
}

func TestActor_cancel_reports_queued_messages(t *testing.T) {
	type job struct{ N int }
	ctx, cancel := context.WithCancel(t.Context())
	started := make(chan struct{})
	release := make(chan struct{})
	failures := make(chan Failure, 3)
	a := newTestActor(
		t, Options{Context: ctx, OnError: func(f Failure) { failures <- f }},
		HandleMsg[job](func(hc HandlerCtx, j job) error {
			if j.N == 0 {
				close(started)
				<-release
			}
			return nil
		}),
	)

	for i := range 3 {
		require.NoError(t, Tell(t.Context(), a, job{N: i}))
	}
	<-started
	cancel()
	close(release)

	select {
	case <-a.Done():
	case <-time.After(time.Second):
		t.Fatal("actor did not stop on cancel")
	}
	require.Len(t, failures, 2)
	require.ErrorIs(t, Tell(t.Context(), a, job{}), ErrActorStopped)
}

func TestActor_concurrent_send_and_stop(t *testing.T) {
	type job struct{}
	var (
		handled  atomic.Int32
		failed   atomic.Int32
		accepted atomic.Int32
	)
	a := newTestActor(
		t, Options{MailboxSize: 4, OnError: func(Failure) { failed.Add(1) }},
		HandleMsg[job](func(hc HandlerCtx, _ job) error {
			handled.Add(1)
			return nil
		}),
	)

	var wg sync.WaitGroup
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range 50 {
				if Tell(t.Context(), a, job{}) == nil {
					accepted.Add(1)
				}
			}
		}()
	}
	a.Stop()
	wg.Wait()

	// every accepted message is either handled or reported
	require.Equal(t, accepted.Load(), handled.Load()+failed.Load())
}

func TestActor_invocation(t *testing.T) {
	type who struct{}
	var leaked *Invocation
	a := newTestActor(
		t, Options{},
		HandleRequest[who, string](func(hc HandlerCtx, _ who) (*string, error) {
			inv := hc.Invocation()
			leaked = inv
			require.True(t, inv.Active())
			id := inv.Sender().ID() + "/" + inv.ID()
			return &id, nil
		}),
	)

	res, err := Request[who, string](t.Context(), a, who{}, WithSender(namedCaller("alice")), WithMessageID("r-1"))
	require.NoError(t, err)
	require.Equal(t, "alice/r-1", *res)
	require.False(t, leaked.Active())
}

type namedCaller string

func (n namedCaller) ID() string { return string(n) }

type countingMetrics struct {
	nopActorMetrics
	mu   sync.Mutex
	drop int
}

func (c *countingMetrics) ReplyDropped(string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.drop++
}

func (c *countingMetrics) dropped() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.drop
}
