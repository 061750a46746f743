package leadboard

import (
	core "github.com/goliatone/go-leadboard/components/leads"
)

// Row is a single backend record.
type Row = core.Row

// Config re-exports the backend configuration.
type Config = core.Config

// Table exposes the selectable, annotatable row table.
type Table = core.Table

// TableOption re-export for convenience.
type TableOption = core.TableOption

// Store is the fetch-state store over row collections.
type Store = core.Store[[]Row]

// State is a store snapshot.
type State = core.State[[]Row]

type (
	Annotation   = core.Annotation
	Tag          = core.Tag
	SubmitResult = core.SubmitResult
	Session      = core.Session
	Error        = core.Error
)

var (
	ErrUnauthenticated = core.ErrUnauthenticated
	ErrTransport       = core.ErrTransport
	ErrServer          = core.ErrServer
	ErrValidation      = core.ErrValidation
	ErrNoSelection     = core.ErrNoSelection
)

// NewTable proxies to the internal constructor.
func NewTable(rows []Row, opts ...TableOption) *Table {
	return core.NewTable(rows, opts...)
}

// DefaultConfig proxies to the internal defaults.
func DefaultConfig() Config {
	return core.DefaultConfig()
}

// LoadConfigFile proxies to the internal loader.
func LoadConfigFile(path string) (Config, error) {
	return core.LoadConfigFile(path)
}
