package session

import (
	"sync"

	"voicebutton/voice"
)

type eventKind int

const (
	evState eventKind = iota
	evTick
	evComplete
	evError
)

type event struct {
	kind    eventKind
	state   voice.State
	elapsed int
	outcome voice.Outcome
	err     *voice.VoiceError
}

// dispatcher delivers events to observers off the machine loop. The queue is
// unbounded so the loop never waits on a slow observer.
type dispatcher struct {
	mu        sync.Mutex
	queue     []event
	observers map[int]Observer
	nextID    int

	wake chan struct{}
	quit chan struct{}
	done chan struct{}
}

func newDispatcher() *dispatcher {
	d := &dispatcher{
		observers: make(map[int]Observer),
		wake:      make(chan struct{}, 1),
		quit:      make(chan struct{}),
		done:      make(chan struct{}),
	}
	go d.run()
	return d
}

func (d *dispatcher) subscribe(o Observer) func() {
	d.mu.Lock()
	id := d.nextID
	d.nextID++
	d.observers[id] = o
	d.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			d.mu.Lock()
			delete(d.observers, id)
			d.mu.Unlock()
		})
	}
}

func (d *dispatcher) post(ev event) {
	d.mu.Lock()
	d.queue = append(d.queue, ev)
	d.mu.Unlock()
	select {
	case d.wake <- struct{}{}:
	default:
	}
}

func (d *dispatcher) run() {
	defer close(d.done)
	for {
		d.mu.Lock()
		if len(d.queue) == 0 {
			d.mu.Unlock()
			select {
			case <-d.wake:
				continue
			case <-d.quit:
				return
			}
		}
		ev := d.queue[0]
		d.queue = d.queue[1:]
		obs := make([]Observer, 0, len(d.observers))
		for id := 0; id < d.nextID; id++ {
			if o, ok := d.observers[id]; ok {
				obs = append(obs, o)
			}
		}
		d.mu.Unlock()

		for _, o := range obs {
			deliver(o, ev)
		}
	}
}

func deliver(o Observer, ev event) {
	switch ev.kind {
	case evState:
		o.StateChanged(ev.state)
	case evTick:
		o.Ticked(ev.elapsed)
	case evComplete:
		o.Completed(ev.outcome)
	case evError:
		o.Failed(ev.err)
	}
}

func (d *dispatcher) close() {
	close(d.quit)
	<-d.done
}
