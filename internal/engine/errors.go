package engine

import "errors"

// Reasons a mutation entry point refuses a request.
var (
	ErrUnknownItem           = errors.New("unknown item")
	ErrUnknownRecipe         = errors.New("unknown recipe")
	ErrUnknownFacility       = errors.New("unknown facility")
	ErrUnknownTask           = errors.New("unknown crafting task")
	ErrQueueFull             = errors.New("crafting queue is full")
	ErrInvalidQuantity       = errors.New("quantity must be positive")
	ErrInsufficientMaterials = errors.New("insufficient materials")
	ErrTechnologyUnavailable = errors.New("technology unavailable")
	ErrFuelRejected          = errors.New("fuel rejected")
)
