package view

import (
	"sort"
	"sync"

	"github.com/AbelMP17/OnlyNadesV2/coords"
)

// Listener receives every pointer-down in the document.
type Listener func(e coords.Event)

// Document is the page-level pointer-down registry views use to notice
// clicks outside their container. Each mounted view holds exactly one
// registration, dropped again on unmount.
type Document struct {
	mu        sync.Mutex
	next      int
	listeners map[int]Listener
}

func NewDocument() *Document {
	return &Document{listeners: make(map[int]Listener)}
}

// Add registers l and returns the function that removes it again. The
// remover is safe to call more than once.
func (d *Document) Add(l Listener) (remove func()) {
	d.mu.Lock()
	id := d.next
	d.next++
	d.listeners[id] = l
	d.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			d.mu.Lock()
			delete(d.listeners, id)
			d.mu.Unlock()
		})
	}
}

// Dispatch delivers e to every listener in registration order. Listeners
// may add or remove registrations while running.
func (d *Document) Dispatch(e coords.Event) {
	d.mu.Lock()
	ids := make([]int, 0, len(d.listeners))
	for id := range d.listeners {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	ls := make([]Listener, 0, len(ids))
	for _, id := range ids {
		ls = append(ls, d.listeners[id])
	}
	d.mu.Unlock()

	for _, l := range ls {
		l(e)
	}
}

// Len returns the number of live registrations.
func (d *Document) Len() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.listeners)
}
