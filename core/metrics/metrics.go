// Package metrics holds the backend-neutral instrumentation types shared by
// the actor runtime and the list stores. Concrete backends live under
// adapters/ (see adapters/prometheus).
package metrics

import "time"

// Timer measures one operation. Call ObserveDuration when it completes:
//
//	defer m.OpDuration("append").ObserveDuration()
type Timer interface {
	ObserveDuration()
}

// TimerFunc adapts a plain function into a Timer.
type TimerFunc func()

func (f TimerFunc) ObserveDuration() { f() }

// Since returns a Timer that reports the time elapsed from now to observe.
func Since(observe func(time.Duration)) Timer {
	start := time.Now()
	return TimerFunc(func() { observe(time.Since(start)) })
}
