package proxy

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/codewandler/chatlog-go/core/actor"
)

type (
	getService struct{}
	serviceRef struct{ ID string }

	// SimpleService is the typed handle callers expose.
	SimpleService interface {
		actor.Caller
		Name() string
	}

	simpleService struct{ name string }
	plainCaller   struct{}
)

func (s *simpleService) ID() string   { return "svc-" + s.name }
func (s *simpleService) Name() string { return s.name }
func (plainCaller) ID() string        { return "plain" }

// newReceiver answers getService with the ID of whoever asked, resolved as a
// SimpleService.
func newReceiver(t *testing.T) actor.Actor {
	a := actor.TypedHandlers(
		actor.HandleRequest[getService, serviceRef](func(hc actor.HandlerCtx, _ getService) (*serviceRef, error) {
			svc, err := CurrentCaller[SimpleService](hc)
			if err != nil {
				return nil, err
			}
			return &serviceRef{ID: svc.ID()}, nil
		}),
	).ToActor(actor.Options{Context: t.Context()})
	t.Cleanup(a.Stop)
	return a
}

func TestProxy_CurrentCaller(t *testing.T) {
	recv := newReceiver(t)
	p := New[getService, serviceRef](recv, Options{Sender: &simpleService{name: "echo"}})

	res, err := p.Call(t.Context(), getService{})
	require.NoError(t, err)
	require.Equal(t, "svc-echo", res.ID)
}

func TestProxy_CurrentCaller_no_sender(t *testing.T) {
	recv := newReceiver(t)
	p := New[getService, serviceRef](recv, Options{})

	_, err := p.Call(t.Context(), getService{})
	require.ErrorIs(t, err, actor.ErrNoActiveInvocation)
}

func TestProxy_CurrentCaller_wrong_type(t *testing.T) {
	recv := newReceiver(t)
	p := New[getService, serviceRef](recv, Options{Sender: plainCaller{}})

	_, err := p.Call(t.Context(), getService{})
	require.ErrorIs(t, err, ErrCallerType)
}

func TestCurrentCaller_outside_invocation(t *testing.T) {
	_, err := CurrentCaller[SimpleService](nil)
	require.ErrorIs(t, err, actor.ErrNoActiveInvocation)
}

func TestCurrentCaller_after_handler_returned(t *testing.T) {
	type capture struct{}
	leaked := make(chan actor.HandlerCtx, 1)
	a := actor.TypedHandlers(
		actor.HandleRequest[capture, struct{}](func(hc actor.HandlerCtx, _ capture) (*struct{}, error) {
			leaked <- hc
			return &struct{}{}, nil
		}),
	).ToActor(actor.Options{Context: t.Context()})
	defer a.Stop()

	_, err := actor.Request[capture, struct{}](t.Context(), a, capture{}, actor.WithSender(&simpleService{name: "x"}))
	require.NoError(t, err)

	_, err = CurrentCaller[SimpleService](<-leaked)
	require.ErrorIs(t, err, actor.ErrNoActiveInvocation)
}

func TestProxy_Tell(t *testing.T) {
	type note struct{ Text string }
	got := make(chan string, 1)
	a := actor.TypedHandlers(
		actor.HandleMsg[note](func(hc actor.HandlerCtx, n note) error {
			svc, err := CurrentCaller[SimpleService](hc)
			if err != nil {
				return err
			}
			got <- svc.Name() + ":" + n.Text
			return nil
		}),
	).ToActor(actor.Options{Context: t.Context()})
	defer a.Stop()

	p := New[note, struct{}](a, Options{Sender: &simpleService{name: "bob"}})
	require.NoError(t, p.Tell(t.Context(), note{Text: "hi"}))
	require.Equal(t, "bob:hi", <-got)
}
