package domain

import "errors"

var (
	ErrInvalidID               = errors.New("invalid id")
	ErrInvalidOwner            = errors.New("invalid owner")
	ErrInvalidName             = errors.New("invalid name")
	ErrInvalidTitle            = errors.New("invalid title")
	ErrInvalidStatus           = errors.New("invalid status")
	ErrInvalidPriority         = errors.New("invalid priority")
	ErrInvalidNotificationType = errors.New("invalid notification type")
	ErrInvalidBody             = errors.New("invalid body")
	ErrInvalidTaskID           = errors.New("invalid task id")
)
