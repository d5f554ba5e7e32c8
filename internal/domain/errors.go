package domain

import "errors"

var (
	// ErrSegmentationEmpty signals that a source document produced no
	// passages above the size thresholds. Not fatal during a build.
	ErrSegmentationEmpty = errors.New("segmentation produced no passages")
	// ErrEmbeddingUnavailable signals an embedding provider failure.
	ErrEmbeddingUnavailable = errors.New("embedding unavailable")
	// ErrCompletionUnavailable signals a completion provider failure or a
	// response without a usable choice.
	ErrCompletionUnavailable = errors.New("completion unavailable")
	// ErrStoreUnavailable signals that the persisted passage file was
	// missing or unparseable at startup.
	ErrStoreUnavailable = errors.New("passage store unavailable")
	// ErrNoPassagesAvailable signals a loaded but empty passage store.
	ErrNoPassagesAvailable = errors.New("no passages available")
)
