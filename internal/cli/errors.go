package cli

import "errors"

var (
	// ErrInvalidWorkflow — workflow не прошёл валидацию.
	ErrInvalidWorkflow = errors.New("workflow is invalid")

	// ErrRunFailed — run завершился не со статусом completed.
	ErrRunFailed = errors.New("run did not complete")
)
