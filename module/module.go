package module

import (
	"context"
	"strconv"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	picklehost "github.com/wippyai/pickle-host"
	"github.com/wippyai/pickle-host/command"
	"github.com/wippyai/pickle-host/errors"
	"github.com/wippyai/pickle-host/interp"
)

// Module is one registered module kind with its tag table.
type Module struct {
	kind     Kind
	interp   *interp.Interp
	tags     *TagTable
	log      *zap.Logger
	name     []byte
	commands []string
	index    int
	next     uint64
}

// Index returns the module's position in build order.
func (m *Module) Index() int { return m.index }

// Name returns the module kind's name.
func (m *Module) Name() string { return m.kind.Name() }

// Kind returns the module kind.
func (m *Module) Kind() Kind { return m.kind }

// Tags returns the module's tag table.
func (m *Module) Tags() *TagTable { return m.tags }

// Interp returns the interpreter the module is bound into.
func (m *Module) Interp() *interp.Interp { return m.interp }

// Allocator returns the interpreter's allocator.
func (m *Module) Allocator() picklehost.Allocator { return m.interp.Allocator() }

// Logger returns a logger named after the module.
func (m *Module) Logger() *zap.Logger { return m.log }

// Commands returns the names of the commands the module registered.
func (m *Module) Commands() []string {
	return append([]string(nil), m.commands...)
}

// RegisterCommands binds shapes into the interpreter's global namespace.
// The module is passed to every invocation as Call.Data. On failure the
// commands bound by this call are unbound again.
func (m *Module) RegisterCommands(shapes ...command.Shape) error {
	var undo command.Undo
	defer func() { _ = undo.Release() }()

	for _, s := range shapes {
		name := s.CommandName()
		if err := m.interp.RegisterCommand(name, s.Func(), m); err != nil {
			return err
		}
		undo.Push(func() error {
			m.interp.UnregisterCommand(name)
			return nil
		})
	}
	for _, s := range shapes {
		m.commands = append(m.commands, s.CommandName())
	}
	undo.Commit()
	return nil
}

// Open registers h under a fresh identifier made of prefix and a counter
// that never repeats within the module, and returns the identifier.
func (m *Module) Open(prefix string, h Handle) (string, error) {
	m.next++
	id := prefix + strconv.FormatUint(m.next, 10)
	if err := m.tags.Add(id, h); err != nil {
		return "", err
	}
	return id, nil
}

// Lookup returns the handle registered under id, or a not-found error
// naming the command at path.
func (m *Module) Lookup(path []string, id string) (Handle, error) {
	h, ok := m.tags.Find(id)
	if !ok {
		return nil, errors.NotFound(path, "no such handle", id)
	}
	return h, nil
}

// Close removes the tag registered under id, cleaning up its handle.
func (m *Module) Close(ctx context.Context, path []string, id string) error {
	if _, err := m.Lookup(path, id); err != nil {
		return err
	}
	if err := m.tags.Remove(ctx, id); err != nil {
		return errors.Engine(path, "cleanup failed", err)
	}
	return nil
}

// teardown cleans every remaining tag, shuts the kind down and unbinds the
// module's commands.
func (m *Module) teardown(ctx context.Context) error {
	err := m.tags.Clear(ctx)
	if s, ok := m.kind.(Shutdowner); ok {
		if serr := s.Shutdown(ctx); serr != nil {
			err = multierr.Append(err, errors.Wrap(errors.PhaseTeardown, errors.KindEngine, serr, m.Name()+" shutdown"))
		}
	}
	for _, name := range m.commands {
		m.interp.UnregisterCommand(name)
	}
	m.commands = nil
	return err
}

func (m *Module) observe(e Event) {
	switch {
	case e.Err != nil:
		m.log.Warn("tag cleanup failed", zap.String("tag", e.Name), zap.Error(e.Err))
	default:
		m.log.Debug("tag "+e.Type.String(), zap.String("tag", e.Name))
	}
}
