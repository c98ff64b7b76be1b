package cdbmod

import (
	"os"

	"github.com/spf13/afero"

	"github.com/wippyai/pickle-host/cdb"
)

// fileSystem supplies the engine's file primitives from an afero.Fs.
type fileSystem struct {
	fs afero.Fs
}

type file struct {
	afero.File
}

func (f file) Flush() error {
	return f.Sync()
}

func (s fileSystem) Open(name string, mode cdb.Mode) (cdb.File, error) {
	var (
		f   afero.File
		err error
	)
	switch mode {
	case cdb.ModeCreate:
		f, err = s.fs.OpenFile(name, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0o644)
	default:
		f, err = s.fs.Open(name)
	}
	if err != nil {
		return nil, err
	}
	return file{f}, nil
}
