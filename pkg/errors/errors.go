package errors

import "errors"

// Error codes shared by the pipeline and the CLI boundary.
const (
	CodeSourceNotFound  = "source_not_found"
	CodeSourceInvalid   = "source_invalid"
	CodeSchema          = "schema_error"
	CodeInferenceFailed = "inference_failed"
	CodeInterrupted     = "interrupted"
	CodeSink            = "sink_error"
	CodeInvalidConfig   = "invalid_config"
	CodeInvalidUsage    = "invalid_usage"
)

// AppError encodes domain specific error details.
type AppError struct {
	Code    string
	Message string
	Err     error
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// Wrap produces a new AppError instance.
func Wrap(code, message string, err error) error {
	if err == nil {
		return &AppError{Code: code, Message: message}
	}
	return &AppError{Code: code, Message: message, Err: err}
}

// IsCode helps callers differentiate failures.
func IsCode(err error, code string) bool {
	return CodeOf(err) == code
}

// CodeOf returns the code of the outermost AppError in the chain, or "".
func CodeOf(err error) string {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return ""
}
