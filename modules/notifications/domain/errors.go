package domain

import "errors"

var (
	ErrMissingOrderData      = errors.New("order event carries no document")
	ErrRecipientUnresolvable = errors.New("no email address found for purchaser")
	ErrDeliveryFailed        = errors.New("confirmation email delivery failed")
)
