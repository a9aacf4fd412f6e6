package core

import (
	"errors"
)

var (
	ErrPlanning        = errors.New("arraypack: invalid planning input")
	ErrUnknownCodec    = errors.New("arraypack: unknown compression method")
	ErrAmbiguousConfig = errors.New("arraypack: ambiguous configuration")
	ErrBackendMismatch = errors.New("arraypack: backend mismatch")
	ErrShortRead       = errors.New("arraypack: source under-delivered")
	ErrWrite           = errors.New("arraypack: destination write failed")
	ErrNotFound        = errors.New("arraypack: not found")
	ErrCorrupt         = errors.New("arraypack: corrupt container")
	ErrClosed          = errors.New("arraypack: closed")
	ErrInvalidInput    = errors.New("arraypack: invalid input")
)
