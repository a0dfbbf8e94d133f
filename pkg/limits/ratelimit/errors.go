package ratelimit

import "errors"

var (
	// ErrInvalidCapacity is returned when a capacity or limit of zero is requested.
	ErrInvalidCapacity = errors.New("capacity must be greater than zero")

	// ErrInvalidRate is returned when a refill or leak rate of zero is requested.
	ErrInvalidRate = errors.New("rate must be greater than zero")

	// ErrInvalidWindow is returned when a window duration is not positive.
	ErrInvalidWindow = errors.New("window must be a positive duration")
)
