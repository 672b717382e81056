package factory

import (
	"errors"

	"github.com/mpapenbr/fieldapp-client/pkg/tokenstore"
)

type StoreType string

var (
	ErrStoreTypeNotSupported = errors.New("token store type not supported")
	ErrStoreWrongCreator     = errors.New("token store wrong creator")
)

//nolint:lll //readability
type Creator[S tokenstore.Store, ImplOpt any] func([]tokenstore.Option, []ImplOpt) (S, error)

var registry = map[StoreType]any{}

// Register a new implementation generically
//
//nolint:whitespace //editor/linter issue
func Register[S tokenstore.Store, ImplOpt any](
	key StoreType, creator Creator[S, ImplOpt],
) {
	registry[key] = creator
}

// Create a new instance
//
//nolint:whitespace //editor/linter issue
func New[S tokenstore.Store, ImplOpt any](
	key StoreType,
	common []tokenstore.Option,
	specific []ImplOpt,
) (S, error) {
	entry, ok := registry[key]
	if !ok {
		var zero S
		return zero, ErrStoreTypeNotSupported
	}
	creator, ok := entry.(Creator[S, ImplOpt])
	if !ok {
		var zero S
		return zero, ErrStoreWrongCreator
	}
	return creator(common, specific)
}
