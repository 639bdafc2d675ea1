package errors

// ErrorCode represents a unique error code for identifying different error types.
type ErrorCode int

const (
	// General errors (1-99)
	ErrCodeUnknown ErrorCode = 1

	// Validation errors (100-199)
	ErrCodeInvalidParameter     ErrorCode = 100
	ErrCodeInvalidConfiguration ErrorCode = 101
	ErrCodeMissingParameter     ErrorCode = 102
	ErrCodeInvalidVersion       ErrorCode = 103

	// Data/Cache errors (200-299)
	ErrCodeDataUnavailable   ErrorCode = 200
	ErrCodeSymbolFetchFailed ErrorCode = 201
	ErrCodeCacheWriteFailed  ErrorCode = 202
	ErrCodeCacheReadFailed   ErrorCode = 203
	ErrCodeQueryFailed       ErrorCode = 204
	ErrCodeDataNotFound      ErrorCode = 205

	// Strategy errors (400-499)
	ErrCodeUnknownStrategy     ErrorCode = 400
	ErrCodeStrategyConfigError ErrorCode = 401
	ErrCodeStrategyExists      ErrorCode = 402
	ErrCodeUnknownScreener     ErrorCode = 403
	ErrCodeScreenerConfigError ErrorCode = 404
	ErrCodeScreenerExists      ErrorCode = 405

	// Job errors (600-699)
	ErrCodeAlreadyRunning   ErrorCode = 600
	ErrCodeRunInternalError ErrorCode = 601
	ErrCodeResultSaveFailed ErrorCode = 602
	ErrCodeNoResult         ErrorCode = 603
)

// Category groups error codes by their numeric range.
type Category string

const (
	CategoryGeneral    Category = "general"
	CategoryValidation Category = "validation"
	CategoryData       Category = "data"
	CategoryStrategy   Category = "strategy"
	CategoryJob        Category = "job"
)

// Category returns the category the code belongs to.
func (c ErrorCode) Category() Category {
	switch {
	case c >= 100 && c < 200:
		return CategoryValidation
	case c >= 200 && c < 300:
		return CategoryData
	case c >= 400 && c < 500:
		return CategoryStrategy
	case c >= 600 && c < 700:
		return CategoryJob
	default:
		return CategoryGeneral
	}
}
