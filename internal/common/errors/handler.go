// internal/common/errors/handler.go
package errors

// ErrorHandler normalizes and logs per-message and loop-level errors.
type ErrorHandler struct {
	logger Logger
}

type Logger interface {
	Error(msg string, fields map[string]interface{})
}

func NewErrorHandler(logger Logger) *ErrorHandler {
	return &ErrorHandler{logger: logger}
}

// Handle logs err with its code and category and returns the normalized form.
func (h *ErrorHandler) Handle(msg string, err error, fields map[string]interface{}) *StandardError {
	stdErr := FromError(err)
	if stdErr == nil {
		return nil
	}

	logFields := map[string]interface{}{
		"errorCode":     string(stdErr.Code),
		"message":       stdErr.Message,
		"details":       stdErr.Details,
		"retryable":     stdErr.Retryable,
		"retries":       GetRetryCount(stdErr.Code),
		"errorCategory": GetErrorCategory(stdErr.Code),
	}
	for k, v := range stdErr.Metadata {
		logFields[k] = v
	}
	for k, v := range fields {
		logFields[k] = v
	}

	h.logger.Error(msg, logFields)
	return stdErr
}
