package httpmod

import (
	"context"
	"io"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/spf13/afero"
	"go.uber.org/zap"

	"github.com/wippyai/pickle-host/command"
	"github.com/wippyai/pickle-host/errors"
	"github.com/wippyai/pickle-host/module"
)

// Name is the module and command name.
const Name = "httpc"

// DefaultTimeout bounds every request unless WithTimeout says otherwise.
const DefaultTimeout = 30 * time.Second

// Option configures a Kind.
type Option func(*Kind)

// WithTimeout sets the per-request timeout.
func WithTimeout(d time.Duration) Option {
	return func(k *Kind) { k.timeout = d }
}

// WithDebug logs every request and response at debug level.
func WithDebug(on bool) Option {
	return func(k *Kind) { k.debug = on }
}

// Kind is the httpc module kind.
type Kind struct {
	fs      afero.Fs
	client  *resty.Client
	timeout time.Duration
	debug   bool
}

// New returns an httpc module storing bodies on fs.
func New(fs afero.Fs, opts ...Option) *Kind {
	k := &Kind{fs: fs, timeout: DefaultTimeout}
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
	k.client = resty.New().
		SetTimeout(k.timeout).
		SetRetryCount(0).
		SetHeader("User-Agent", "pickle-host httpc").
		SetLogger(m.Logger().Sugar()).
		SetDebug(k.debug)

	return m.RegisterCommands(command.Group{Name: Name, Subs: []command.Fixed{
		{Name: "version", Min: 0, Max: 0, Run: version},
		{Name: "get", Usage: "URL file", Min: 2, Max: 2, Run: k.get},
		{Name: "put", Usage: "URL file", Min: 2, Max: 2, Run: k.put},
		{Name: "delete", Usage: "URL", Min: 1, Max: 1, Run: k.delete},
		{Name: "head", Usage: "URL", Min: 1, Max: 1, Run: k.head},
	}})
}

// Shutdown implements module.Shutdowner.
func (k *Kind) Shutdown(context.Context) error {
	if k.client != nil {
		k.client.GetClient().CloseIdleConnections()
	}
	return nil
}

// PackedVersion returns the client library version as 0x00MMmmpp.
func PackedVersion() uint32 {
	var packed uint32
	parts := strings.SplitN(strings.TrimPrefix(resty.Version, "v"), ".", 3)
	for i := 0; i < 3; i++ {
		packed <<= 8
		if i < len(parts) {
			digits := strings.TrimRightFunc(parts[i], func(r rune) bool { return r < '0' || r > '9' })
			if n, err := strconv.ParseUint(digits, 10, 8); err == nil {
				packed |= uint32(n)
			}
		}
	}
	return packed
}

func version(context.Context, *command.Call) (string, error) {
	return command.Version(PackedVersion()), nil
}

func failed(c *command.Call, url string, err error) error {
	return errors.New(errors.PhaseEngine, errors.KindEngine).
		Command(c.Path...).Token(url).Detail("request failed").Cause(err).Build()
}

func status(c *command.Call, url string, resp *resty.Response) error {
	if !resp.IsError() {
		return nil
	}
	return errors.New(errors.PhaseEngine, errors.KindEngine).
		Command(c.Path...).Token(url).Detail("server returned %s", resp.Status()).Build()
}

func (k *Kind) get(ctx context.Context, c *command.Call) (string, error) {
	url, path := c.Args[0], c.Args[1]

	resp, err := k.client.R().SetContext(ctx).SetDoNotParseResponse(true).Get(url)
	if err != nil {
		return "", failed(c, url, err)
	}
	body := resp.RawBody()
	defer body.Close()
	if err := status(c, url, resp); err != nil {
		return "", err
	}

	// The body lands in a sibling temp file so path changes only on success.
	f, err := afero.TempFile(k.fs, filepath.Dir(path), "."+filepath.Base(path)+".*")
	if err != nil {
		return "", errors.New(errors.PhaseEngine, errors.KindEngine).
			Command(c.Path...).Token(path).Detail("cannot open for writing").Cause(err).Build()
	}
	tmp := f.Name()
	var undo command.Undo
	defer func() { _ = undo.Release() }()
	undo.Push(func() error { return k.fs.Remove(tmp) })
	undo.Push(f.Close)

	n, err := io.Copy(f, body)
	if err != nil {
		return "", failed(c, url, err)
	}
	if err := f.Close(); err != nil {
		return "", failed(c, url, err)
	}
	if err := k.fs.Rename(tmp, path); err != nil {
		return "", errors.New(errors.PhaseEngine, errors.KindEngine).
			Command(c.Path...).Token(path).Detail("cannot replace file").Cause(err).Build()
	}
	undo.Commit()
	c.Data.(*module.Module).Logger().Debug("downloaded",
		zap.String("url", url), zap.String("file", path), zap.Int64("bytes", n))
	return command.Int(n), nil
}

func (k *Kind) put(ctx context.Context, c *command.Call) (string, error) {
	url, path := c.Args[0], c.Args[1]

	f, err := k.fs.Open(path)
	if err != nil {
		return "", errors.New(errors.PhaseEngine, errors.KindEngine).
			Command(c.Path...).Token(path).Detail("cannot open for reading").Cause(err).Build()
	}
	defer f.Close()

	resp, err := k.client.R().SetContext(ctx).SetBody(io.Reader(f)).Put(url)
	if err != nil {
		return "", failed(c, url, err)
	}
	if err := status(c, url, resp); err != nil {
		return "", err
	}
	return "ok", nil
}

func (k *Kind) delete(ctx context.Context, c *command.Call) (string, error) {
	resp, err := k.client.R().SetContext(ctx).Delete(c.Args[0])
	if err != nil {
		return "", failed(c, c.Args[0], err)
	}
	if err := status(c, c.Args[0], resp); err != nil {
		return "", err
	}
	return "ok", nil
}

func (k *Kind) head(ctx context.Context, c *command.Call) (string, error) {
	resp, err := k.client.R().SetContext(ctx).Head(c.Args[0])
	if err != nil {
		return "", failed(c, c.Args[0], err)
	}
	if err := status(c, c.Args[0], resp); err != nil {
		return "", err
	}
	return "ok", nil
}
