package config

import "errors"

var (
	ErrInsufficientArgs = errors.New("insufficient arguments")
	ErrValidationFailed = errors.New("validation failed")
)
