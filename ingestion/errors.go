package ingestion

import "errors"

var (
	// ErrStream is returned when the source archive cannot be opened, has an
	// unsupported extension, or does not start with a JSON array.
	ErrStream = errors.New("unreadable dump stream")

	// ErrSourceRequired is returned when no source path is configured.
	ErrSourceRequired = errors.New("source path required")

	// ErrHandlerRequired is returned when Run is called without a handler.
	ErrHandlerRequired = errors.New("handler required")

	// ErrSinkRequired is returned when Run is called without a sink.
	ErrSinkRequired = errors.New("sink required")

	// ErrNoLiveWorkers is returned when every worker died before the source was exhausted.
	ErrNoLiveWorkers = errors.New("no live workers")

	// ErrInvalidOption is returned when an option value is out of range.
	ErrInvalidOption = errors.New("invalid pipeline option")
)
