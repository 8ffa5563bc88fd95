package dmerrors

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDMError_Unwrap_PreservesOriginalError(t *testing.T) {
	originalErr := errors.New("original error")

	dmErr := New(ErrCodeFileNotFound, "file not found: test.txt", originalErr)

	require.NotNil(t, dmErr)
	assert.Equal(t, originalErr, errors.Unwrap(dmErr))
	assert.True(t, errors.Is(dmErr, originalErr))
}

func TestDMError_Error_ReturnsFormattedMessage(t *testing.T) {
	tests := []struct {
		name     string
		code     string
		message  string
		expected string
	}{
		{
			name:     "config error",
			code:     ErrCodeConfigNotFound,
			message:  "config file not found",
			expected: "[ERR_101_CONFIG_NOT_FOUND] config file not found",
		},
		{
			name:     "file error",
			code:     ErrCodeFileNotFound,
			message:  "file.go not found",
			expected: "[ERR_201_FILE_NOT_FOUND] file.go not found",
		},
		{
			name:     "vector error",
			code:     ErrCodeNetworkTimeout,
			message:  "request timed out",
			expected: "[ERR_501_NETWORK_TIMEOUT] request timed out",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := New(tt.code, tt.message, nil)
			assert.Equal(t, tt.expected, err.Error())
		})
	}
}

func TestDMError_Is_MatchesByCode(t *testing.T) {
	err1 := New(ErrCodeFileNotFound, "file A not found", nil)
	err2 := New(ErrCodeFileNotFound, "file B not found", nil)

	assert.True(t, errors.Is(err1, err2))
}

func TestDMError_Is_DoesNotMatchDifferentCodes(t *testing.T) {
	err1 := New(ErrCodeFileNotFound, "file not found", nil)
	err2 := New(ErrCodeConfigNotFound, "config not found", nil)

	assert.False(t, errors.Is(err1, err2))
}

func TestDMError_WithDetails_AddsContext(t *testing.T) {
	err := New(ErrCodeFileNotFound, "file not found", nil)

	err = err.WithDetail("path", "/foo/bar.go")
	err = err.WithDetail("size", "1024")

	assert.Equal(t, "/foo/bar.go", err.Details["path"])
	assert.Equal(t, "1024", err.Details["size"])
}

func TestDMError_WithSuggestion_AddsSuggestion(t *testing.T) {
	err := New(ErrCodeNetworkTimeout, "connection timed out", nil)

	err = err.WithSuggestion("Check the vector backend is running")

	assert.Equal(t, "Check the vector backend is running", err.Suggestion)
}

func TestDMError_CategoryFromCode(t *testing.T) {
	tests := []struct {
		code         string
		wantCategory Category
	}{
		{ErrCodeConfigNotFound, CategoryInput},
		{ErrCodeConfigInvalid, CategoryInput},
		{ErrCodeFileNotFound, CategoryNotFound},
		{ErrCodeLearningNotFound, CategoryNotFound},
		{ErrCodeAccessDenied, CategoryAccessDenied},
		{ErrCodeStoreFailure, CategoryStoreFailure},
		{ErrCodeNetworkTimeout, CategoryVectorFailure},
		{ErrCodeNetworkUnavailable, CategoryVectorFailure},
		{ErrCodeEmbeddingFailed, CategoryVectorFailure},
		{ErrCodeInvalidInput, CategoryInput},
		{ErrCodeDimensionMismatch, CategoryInput},
		{ErrCodeChunkingOrphan, CategoryChunkingOrphan},
		{ErrCodeTimeout, CategoryTimeout},
		{ErrCodeShutdown, CategoryShutdown},
		{ErrCodeInternal, CategoryInternal},
	}

	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			err := New(tt.code, "test message", nil)
			assert.Equal(t, tt.wantCategory, err.Category)
		})
	}
}

func TestDMError_SeverityFromCode(t *testing.T) {
	tests := []struct {
		code         string
		wantSeverity Severity
	}{
		{ErrCodeCorruptIndex, SeverityFatal},
		{ErrCodeDiskFull, SeverityFatal},
		{ErrCodeMigrationFailed, SeverityFatal},
		{ErrCodeFileNotFound, SeverityError},
		{ErrCodeNetworkTimeout, SeverityWarning},
		{ErrCodeNetworkUnavailable, SeverityWarning},
	}

	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			err := New(tt.code, "test message", nil)
			assert.Equal(t, tt.wantSeverity, err.Severity)
		})
	}
}

func TestDMError_RetryableFromCode(t *testing.T) {
	tests := []struct {
		code          string
		wantRetryable bool
	}{
		{ErrCodeNetworkTimeout, true},
		{ErrCodeNetworkUnavailable, true},
		{ErrCodeModelDownload, true},
		{ErrCodeEmbeddingFailed, true},
		{ErrCodeVectorBackendDown, true},
		{ErrCodeFileNotFound, false},
		{ErrCodeConfigInvalid, false},
		{ErrCodeCorruptIndex, false},
	}

	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			err := New(tt.code, "test message", nil)
			assert.Equal(t, tt.wantRetryable, err.Retryable)
		})
	}
}

func TestWrap_CreatesDMErrorFromError(t *testing.T) {
	originalErr := errors.New("something went wrong")

	dmErr := Wrap(ErrCodeInternal, originalErr)

	require.NotNil(t, dmErr)
	assert.Equal(t, ErrCodeInternal, dmErr.Code)
	assert.Equal(t, "something went wrong", dmErr.Message)
	assert.Equal(t, originalErr, dmErr.Cause)
}

func TestWrap_NilErrorReturnsNil(t *testing.T) {
	assert.Nil(t, Wrap(ErrCodeInternal, nil))
}

func TestConfigError_CreatesInputCategoryError(t *testing.T) {
	err := ConfigError("invalid yaml syntax", nil)

	assert.Equal(t, CategoryInput, err.Category)
	assert.Contains(t, err.Code, "CONFIG")
}

func TestNotFoundError_CreatesNotFoundCategoryError(t *testing.T) {
	err := NotFoundError(ErrCodeLearningNotFound, "learning not found", nil)

	assert.Equal(t, CategoryNotFound, err.Category)
}

func TestAccessDeniedError_CreatesAccessDeniedCategoryError(t *testing.T) {
	err := AccessDeniedError("learning is private to another agent", nil)

	assert.Equal(t, CategoryAccessDenied, err.Category)
	assert.Equal(t, ErrCodeAccessDenied, err.Code)
}

func TestStoreError_CreatesStoreFailureCategoryError(t *testing.T) {
	err := StoreError("failed to commit transaction", nil)

	assert.Equal(t, CategoryStoreFailure, err.Category)
	assert.False(t, err.Retryable)
}

func TestVectorError_CreatesRetryableVectorFailureError(t *testing.T) {
	err := VectorError("connection refused", nil)

	assert.Equal(t, CategoryVectorFailure, err.Category)
	assert.True(t, err.Retryable)
}

func TestTimeoutError_CreatesTimeoutCategoryError(t *testing.T) {
	err := TimeoutError("operation exceeded deadline", nil)

	assert.Equal(t, CategoryTimeout, err.Category)
}

func TestShutdownError_CreatesShutdownCategoryError(t *testing.T) {
	err := ShutdownError("daemon received stop signal")

	assert.Equal(t, CategoryShutdown, err.Category)
	assert.Nil(t, err.Cause)
}

func TestValidationError_CreatesInputCategoryError(t *testing.T) {
	err := ValidationError("query cannot be empty", nil)

	assert.Equal(t, CategoryInput, err.Category)
}

func TestIsRetryable_ChecksRetryableFlag(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected bool
	}{
		{
			name:     "retryable DMError",
			err:      New(ErrCodeNetworkTimeout, "timeout", nil),
			expected: true,
		},
		{
			name:     "non-retryable DMError",
			err:      New(ErrCodeFileNotFound, "not found", nil),
			expected: false,
		},
		{
			name:     "wrapped retryable error",
			err:      Wrap(ErrCodeNetworkTimeout, errors.New("wrapped")),
			expected: true,
		},
		{
			name:     "standard error",
			err:      errors.New("standard error"),
			expected: false,
		},
		{
			name:     "nil error",
			err:      nil,
			expected: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, IsRetryable(tt.err))
		})
	}
}

func TestIsFatal_ChecksFatalSeverity(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected bool
	}{
		{
			name:     "fatal error",
			err:      New(ErrCodeCorruptIndex, "index corrupt", nil),
			expected: true,
		},
		{
			name:     "disk full error",
			err:      New(ErrCodeDiskFull, "no space left", nil),
			expected: true,
		},
		{
			name:     "non-fatal error",
			err:      New(ErrCodeFileNotFound, "not found", nil),
			expected: false,
		},
		{
			name:     "standard error",
			err:      errors.New("standard error"),
			expected: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, IsFatal(tt.err))
		})
	}
}

func TestGetCode_ExtractsCodeFromDMError(t *testing.T) {
	err := New(ErrCodeFileNotFound, "not found", nil)
	assert.Equal(t, ErrCodeFileNotFound, GetCode(err))
	assert.Equal(t, "", GetCode(errors.New("plain")))
}

func TestGetCategory_ExtractsCategoryFromDMError(t *testing.T) {
	err := New(ErrCodeFileNotFound, "not found", nil)
	assert.Equal(t, CategoryNotFound, GetCategory(err))
	assert.Equal(t, Category(""), GetCategory(errors.New("plain")))
}
