package module

import (
	"context"
	"strconv"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/wippyai/pickle-host/command"
	"github.com/wippyai/pickle-host/errors"
	"github.com/wippyai/pickle-host/heap"
	"github.com/wippyai/pickle-host/interp"
)

// CommandName is the introspection command every registry binds.
const CommandName = "module"

// Registry is the ordered set of modules bound into one interpreter.
type Registry struct {
	interp  *interp.Interp
	modules []*Module
	closed  bool
}

// Build registers kinds into in, in the order given. When any step fails,
// every command bound so far is unbound and every module built so far is
// torn down before the error is returned.
func Build(ctx context.Context, in *interp.Interp, kinds ...Kind) (*Registry, error) {
	r := &Registry{interp: in}
	if err := in.RegisterCommand(CommandName, r.shape().Func(), r); err != nil {
		return nil, errors.New(errors.PhaseRegister, errors.KindDuplicate).
			Token(CommandName).Detail("command").Cause(err).Build()
	}

	seen := make(map[string]bool, len(kinds))
	for i, k := range kinds {
		m, err := r.add(i, k, seen)
		if err != nil {
			Logger().Error("module registration failed", zap.String("module", k.Name()), zap.Error(err))
			return nil, multierr.Append(err, r.rollback(ctx))
		}
		Logger().Debug("module registered",
			zap.String("module", m.Name()),
			zap.Strings("commands", m.commands))
	}
	return r, nil
}

func (r *Registry) add(index int, k Kind, seen map[string]bool) (*Module, error) {
	name := k.Name()
	if name == "" {
		return nil, errors.New(errors.PhaseRegister, errors.KindInvalidArgument).
			Detail("module name is empty").Build()
	}
	if seen[name] {
		return nil, errors.Duplicate(errors.PhaseRegister, "module", name)
	}
	alloc := r.interp.Allocator()
	block, ok := heap.Dup(alloc, name)
	if !ok {
		return nil, errors.New(errors.PhaseRegister, errors.KindOutOfMemory).
			Token(name).Detail("failed to allocate module record").Build()
	}
	m := &Module{
		kind:   k,
		interp: r.interp,
		tags:   NewTagTable(alloc, k),
		log:    Logger().Named(name),
		name:   block,
		index:  index,
	}
	m.tags.Subscribe(ObserverFunc(m.observe))
	// Appended before Register so rollback also undoes a partial registration.
	r.modules = append(r.modules, m)
	seen[name] = true

	if err := k.Register(m); err != nil {
		kind := errors.KindOf(err)
		if kind == "" {
			kind = errors.KindEngine
		}
		return nil, errors.New(errors.PhaseRegister, kind).
			Token(name).Detail("registration failed").Cause(err).Build()
	}
	return m, nil
}

func (r *Registry) rollback(ctx context.Context) error {
	var err error
	for i := len(r.modules) - 1; i >= 0; i-- {
		err = multierr.Append(err, r.release(ctx, r.modules[i]))
	}
	r.modules = nil
	r.interp.UnregisterCommand(CommandName)
	r.closed = true
	return err
}

func (r *Registry) release(ctx context.Context, m *Module) error {
	err := m.teardown(ctx)
	heap.Release(r.interp.Allocator(), m.name)
	m.name = nil
	return err
}

// Len returns the number of modules.
func (r *Registry) Len() int { return len(r.modules) }

// Modules returns the modules in build order.
func (r *Registry) Modules() []*Module {
	return append([]*Module(nil), r.modules...)
}

// Module returns the module with the given name.
func (r *Registry) Module(name string) (*Module, bool) {
	for _, m := range r.modules {
		if m.Name() == name {
			return m, true
		}
	}
	return nil, false
}

// Close tears down every module in build order: each remaining tag is
// cleaned up and released, then the module is shut down and its commands are
// unbound. Close always finishes; every failure is returned combined, the
// first one first. Calling Close again returns nil.
func (r *Registry) Close(ctx context.Context) error {
	if r.closed {
		return nil
	}
	r.closed = true

	var err error
	for _, m := range r.modules {
		if merr := r.release(ctx, m); merr != nil {
			Logger().Warn("module teardown failed", zap.String("module", m.Name()), zap.Error(merr))
			err = multierr.Append(err, merr)
		}
	}
	r.modules = nil
	r.interp.UnregisterCommand(CommandName)
	return err
}

func (r *Registry) shape() command.Group {
	return command.Group{Name: CommandName, Subs: []command.Fixed{
		{Name: "loaded", Min: 0, Max: 0, Run: r.loaded},
		{Name: "list", Min: 0, Max: 0, Run: r.list},
		{Name: "tags", Usage: "name", Min: 1, Max: 1, Run: r.tagCount},
	}}
}

func (r *Registry) loaded(_ context.Context, _ *command.Call) (string, error) {
	return strconv.Itoa(len(r.modules)), nil
}

func (r *Registry) list(_ context.Context, _ *command.Call) (string, error) {
	names := make([]string, len(r.modules))
	for i, m := range r.modules {
		names[i] = m.Name()
	}
	return command.List(names...), nil
}

func (r *Registry) tagCount(_ context.Context, c *command.Call) (string, error) {
	m, ok := r.Module(c.Args[0])
	if !ok {
		return "", errors.NotFound(c.Path, "no such module", c.Args[0])
	}
	return strconv.Itoa(m.tags.Len()), nil
}
