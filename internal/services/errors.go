package services

import "errors"

// User facing failures. Their text is sent back as the reply.
var (
	ErrNoSymbols      = errors.New("Sorry, I could not find any symbols")
	ErrNoValidSymbols = errors.New("Sorry, I could not find any valid symbols")
)
