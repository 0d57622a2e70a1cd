package chatlog

import (
	"sync"

	"github.com/codewandler/chatlog-go/core/actor"
	"github.com/codewandler/chatlog-go/ports/kv"
)

// Resolver picks the actor responsible for a key.
type Resolver interface {
	Resolve(key Key) (actor.Ref, error)
}

type single struct{ ref actor.Ref }

func (s single) Resolve(Key) (actor.Ref, error) { return s.ref, nil }

// Single routes every key to ref.
func Single(ref actor.Ref) Resolver { return single{ref: ref} }

// Router owns one chat log actor per key, created on first use. Appends and
// reads for one key are serialized by that key's mailbox; different keys are
// handled in parallel.
type Router struct {
	store kv.Store
	opts  Options

	mu     sync.Mutex
	actors map[Key]actor.Actor
	closed bool
}

func NewRouter(store kv.Store, opts Options) *Router {
	return &Router{
		store:  store,
		opts:   opts,
		actors: make(map[Key]actor.Actor),
	}
}

func (r *Router) Resolve(key Key) (actor.Ref, error) {
	if key == "" {
		return nil, ErrKeyRequired
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return nil, actor.ErrActorStopped
	}

	a, ok := r.actors[key]
	if !ok {
		opts := r.opts
		opts.ID = "chatlog/" + string(key)
		a = NewActor(r.store, opts)
		r.actors[key] = a
	}
	return a, nil
}

// Len returns the number of live actors.
func (r *Router) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.actors)
}

// Stop stops every actor. Resolve fails afterwards.
func (r *Router) Stop() {
	r.mu.Lock()
	r.closed = true
	actors := r.actors
	r.actors = map[Key]actor.Actor{}
	r.mu.Unlock()

	for _, a := range actors {
		a.Stop()
	}
}
