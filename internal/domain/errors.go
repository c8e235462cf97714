package domain

import "errors"

var (
	ErrNotFound            = errors.New("resource not found")
	ErrInvalidArgument     = errors.New("invalid argument")
	ErrInvalidState        = errors.New("invalid state")
	ErrInsufficientBalance = errors.New("payment amount exceeds remaining balance")
	ErrAlreadySettled      = errors.New("fee is already fully paid")
	ErrDuplicateWebhook    = errors.New("webhook already processed")
	ErrGateway             = errors.New("payment gateway error")
)
