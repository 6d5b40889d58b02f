package domain

import "errors"

var (
	ErrInvalidID         = errors.New("invalid id")
	ErrInvalidTitle      = errors.New("invalid title")
	ErrInvalidCollection = errors.New("invalid collection")
	ErrInvalidKind       = errors.New("invalid kind")
	ErrInvalidStatus     = errors.New("invalid status")
	ErrInvalidOrder      = errors.New("invalid display order")
	ErrInvalidRating     = errors.New("invalid rating")
	ErrInvalidCategory   = errors.New("invalid status category")
	ErrInvalidVisibility = errors.New("invalid visibility")
)
