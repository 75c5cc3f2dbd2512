package errors

// NewTransformError reports a transformer failure for a single block. The
// engine recovers by substituting the fallback transformer's output for that
// node only.
func NewTransformError(blockType string, cause error) *ConvertError {
	return Wrap(cause, CategoryTransform, SeverityWarning, "transformer failed").
		WithContext("block_type", blockType)
}

// NewConfigurationError reports invalid or contradictory options. Fatal to
// the call it was passed to; surfaced synchronously at call entry.
func NewConfigurationError(message string) *ConvertError {
	return New(CategoryConfig, SeverityFatal, message)
}

// NewHydrationError reports a single target's activation failure. Isolated:
// it never propagates to other targets or aborts the scheduler.
func NewHydrationError(targetID, blockType string, cause error) *ConvertError {
	return Wrap(cause, CategoryHydration, SeverityError, "hydration failed").
		WithContext("target_id", targetID).
		WithContext("block_type", blockType).
		WithRetryable()
}

// NewMalformedTreeError reports a block tree invariant violation. Fatal,
// surfaced immediately, no partial output is produced.
func NewMalformedTreeError(message string) *ConvertError {
	return New(CategoryTree, SeverityFatal, message)
}
