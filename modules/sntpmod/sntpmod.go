// Package sntpmod provides the sntp command, a one-shot network time query.
//
//	sntp host ?port?   ;# "seconds fraction" of the server's transmit time
//
// seconds counts from the Unix epoch; fraction is in units of 2^-32 s.
package sntpmod

import (
	"context"
	"net"
	"strconv"
	"time"

	"github.com/beevik/ntp"
	"go.uber.org/zap"

	"github.com/wippyai/pickle-host/command"
	"github.com/wippyai/pickle-host/errors"
	"github.com/wippyai/pickle-host/module"
)

// Name is the module and command name.
const Name = "sntp"

const (
	DefaultPort    = 123
	DefaultTimeout = 5 * time.Second
)

// QueryFunc asks the server at addr for the current time.
type QueryFunc func(addr string, timeout time.Duration) (time.Time, error)

// Query is the QueryFunc backed by the NTP client.
func Query(addr string, timeout time.Duration) (time.Time, error) {
	resp, err := ntp.QueryWithOptions(addr, ntp.QueryOptions{Timeout: timeout})
	if err != nil {
		return time.Time{}, err
	}
	return resp.Time, nil
}

// Option configures a Kind.
type Option func(*Kind)

// WithPort sets the port used when none is given.
func WithPort(port int) Option {
	return func(k *Kind) { k.port = port }
}

// WithTimeout bounds each query.
func WithTimeout(d time.Duration) Option {
	return func(k *Kind) { k.timeout = d }
}

// WithQuery replaces the network query.
func WithQuery(q QueryFunc) Option {
	return func(k *Kind) { k.query = q }
}

// Kind is the sntp module kind.
type Kind struct {
	query   QueryFunc
	timeout time.Duration
	port    int
}

// New returns the sntp module.
func New(opts ...Option) *Kind {
	k := &Kind{query: Query, timeout: DefaultTimeout, port: DefaultPort}
	for _, opt := range opts {
		opt(k)
	}
	return k
}

// Name implements module.Kind.
func (k *Kind) Name() string { return Name }

// Cleanup implements module.Cleaner.
func (k *Kind) Cleanup(context.Context, module.Handle) error { return nil }

// Register implements module.Kind.
func (k *Kind) Register(m *module.Module) error {
	return m.RegisterCommands(command.Fixed{Name: Name, Usage: "host ?port?", Min: 1, Max: 2, Run: k.run})
}

// Fraction converts the sub-second part of t to units of 2^-32 seconds.
func Fraction(t time.Time) uint32 {
	return uint32((uint64(t.Nanosecond()) << 32) / uint64(time.Second))
}

func (k *Kind) run(_ context.Context, c *command.Call) (string, error) {
	host := c.Args[0]
	port := k.port
	if len(c.Args) == 2 {
		n, err := command.ParseUint(c.Path, c.Args[1])
		if err != nil {
			return "", err
		}
		if n == 0 || n > 65535 {
			return "", errors.InvalidArgument(c.Path, c.Args[1], "port out of range")
		}
		port = int(n)
	}

	addr := net.JoinHostPort(host, strconv.Itoa(port))
	t, err := k.query(addr, k.timeout)
	if err != nil {
		return "", errors.New(errors.PhaseEngine, errors.KindEngine).
			Command(c.Path...).Token(addr).Detail("query failed").Cause(err).Build()
	}
	c.Data.(*module.Module).Logger().Debug("time queried", zap.String("server", addr), zap.Time("time", t))
	return command.List(command.Int(t.Unix()), command.Uint(uint64(Fraction(t)))), nil
}
