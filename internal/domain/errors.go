package domain

import "github.com/pkg/errors"

var (
	ErrNotFound          = errors.New("not found")
	ErrConflict          = errors.New("conflict")
	ErrInvalid           = errors.New("invalid argument")
	ErrTransientDelivery = errors.New("transient delivery failure")
	ErrSerialization     = errors.New("serialization failure")
)

func NotFoundf(format string, args ...any) error {
	return errors.Wrapf(ErrNotFound, format, args...)
}

func Conflictf(format string, args ...any) error {
	return errors.Wrapf(ErrConflict, format, args...)
}

func Invalidf(format string, args ...any) error {
	return errors.Wrapf(ErrInvalid, format, args...)
}
