package errors

// Error codes used in structured logs when a request fails. Response bodies
// only ever carry the detail string.
const (
	// Validation errors
	ErrCodeInvalidRequest = "invalid_request"
	ErrCodeInvalidRound   = "invalid_round"
	ErrCodeMissingField   = "missing_field"

	// Resource errors
	ErrCodeCategoryNotFound = "category_not_found"
	ErrCodeClueNotFound     = "clue_not_found"
	ErrCodeNoCategories     = "no_categories"

	// Judge errors
	ErrCodeUpstreamJudge   = "upstream_judge_error"
	ErrCodeMalformedOutput = "malformed_judge_output"

	// Server errors
	ErrCodeInternalError = "internal_error"
)
