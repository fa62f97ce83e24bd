package config

import "github.com/pkg/errors"

func errorf(step string, err error) error { return errors.Wrap(err, step) }
