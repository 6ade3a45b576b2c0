package event

import "sync"

// Local is an in-process Bus. Handlers run synchronously on the
// publishing goroutine, in subscription order.
type Local struct {
	mu   sync.Mutex
	next int
	subs map[Kind]map[int]Handler
	ord  map[Kind][]int
}

// NewLocal returns an empty Local bus.
func NewLocal() *Local {
	return &Local{
		subs: map[Kind]map[int]Handler{},
		ord:  map[Kind][]int{},
	}
}

func (b *Local) Publish(e Event) error {
	b.mu.Lock()
	hs := make([]Handler, 0, len(b.ord[e.Kind]))
	for _, id := range b.ord[e.Kind] {
		hs = append(hs, b.subs[e.Kind][id])
	}
	b.mu.Unlock()

	for _, h := range hs {
		h(e)
	}
	return nil
}

func (b *Local) Subscribe(k Kind, h Handler) (cancel func()) {
	b.mu.Lock()
	defer b.mu.Unlock()
	id := b.next
	b.next++
	if b.subs[k] == nil {
		b.subs[k] = map[int]Handler{}
	}
	b.subs[k][id] = h
	b.ord[k] = append(b.ord[k], id)

	var once sync.Once
	return func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			delete(b.subs[k], id)
			ord := b.ord[k][:0:0]
			for _, v := range b.ord[k] {
				if v != id {
					ord = append(ord, v)
				}
			}
			b.ord[k] = ord
		})
	}
}
