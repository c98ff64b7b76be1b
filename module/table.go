package module

import (
	"context"
	"sort"

	"go.uber.org/multierr"

	picklehost "github.com/wippyai/pickle-host"
	"github.com/wippyai/pickle-host/errors"
	"github.com/wippyai/pickle-host/heap"
)

type tag struct {
	handle Handle
	name   []byte
}

// TagTable maps tag names to handles for one module.
type TagTable struct {
	alloc     picklehost.Allocator
	cleaner   Cleaner
	tags      map[string]*tag
	observers []Observer
}

// NewTagTable creates an empty table. Names are copied into blocks from
// alloc; removed handles are passed to cleaner.
func NewTagTable(alloc picklehost.Allocator, cleaner Cleaner) *TagTable {
	return &TagTable{
		alloc:   alloc,
		cleaner: cleaner,
		tags:    make(map[string]*tag),
	}
}

// Add registers handle under name. An existing entry with the same name is
// left untouched.
func (t *TagTable) Add(name string, h Handle) error {
	if h == nil {
		return errors.New(errors.PhaseCommand, errors.KindInvalidArgument).
			Token(name).Detail("nil handle").Build()
	}
	if _, ok := t.tags[name]; ok {
		return errors.Duplicate(errors.PhaseCommand, "tag", name)
	}
	block, ok := heap.Dup(t.alloc, name)
	if !ok {
		return errors.OutOfMemory(nil, len(name)+1)
	}
	t.tags[name] = &tag{name: block, handle: h}
	t.notify(Event{Type: EventAdded, Name: name, Handle: h})
	return nil
}

// Find returns the handle registered under name.
func (t *TagTable) Find(name string) (Handle, bool) {
	tg, ok := t.tags[name]
	if !ok {
		return nil, false
	}
	return tg.handle, true
}

// Remove cleans up the handle registered under name and drops the entry.
// The entry is gone even when cleanup fails; the cleanup error is returned.
func (t *TagTable) Remove(ctx context.Context, name string) error {
	tg, ok := t.tags[name]
	if !ok {
		return errors.NotFound(nil, "tag", name)
	}
	return t.drop(ctx, name, tg)
}

func (t *TagTable) drop(ctx context.Context, name string, tg *tag) error {
	delete(t.tags, name)
	h := tg.handle
	tg.handle = nil

	var err error
	if h != nil && t.cleaner != nil {
		err = t.cleaner.Cleanup(ctx, h)
	}
	heap.Release(t.alloc, tg.name)
	tg.name = nil

	t.notify(Event{Type: EventRemoved, Name: name, Handle: h, Err: err})
	return err
}

// Foreach calls fn for every live tag, in no particular order. Iteration
// continues past failures; their combination is returned.
func (t *TagTable) Foreach(fn func(name string, h Handle) error) error {
	var err error
	for name, tg := range t.tags {
		err = multierr.Append(err, fn(name, tg.handle))
	}
	return err
}

// Names returns the live tag names in sorted order.
func (t *TagTable) Names() []string {
	names := make([]string, 0, len(t.tags))
	for name := range t.tags {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Len returns the number of live tags.
func (t *TagTable) Len() int {
	return len(t.tags)
}

// Subscribe adds an observer for tag lifecycle events.
func (t *TagTable) Subscribe(o Observer) {
	t.observers = append(t.observers, o)
}

// Clear removes every tag, running cleanup for each, and returns the
// combined cleanup failures.
func (t *TagTable) Clear(ctx context.Context) error {
	var err error
	for name, tg := range t.tags {
		err = multierr.Append(err, t.drop(ctx, name, tg))
	}
	return err
}

func (t *TagTable) notify(e Event) {
	for _, o := range t.observers {
		o.OnTagEvent(e)
	}
}
