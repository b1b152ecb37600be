package usecase

import "errors"

var (
	ErrInvalidInput        = errors.New("invalid input")
	ErrUnauthorized        = errors.New("unauthorized")
	ErrNotFound            = errors.New("resource not found")
	ErrMatchNotFinished    = errors.New("match not finished")
	ErrMatchFrozen         = errors.New("match state is frozen")
	ErrNoProviderAvailable = errors.New("no provider available")
	ErrRateLimited         = errors.New("rate limited")
)
