package worker

import "errors"

// Ошибки воркера.
var (
	// ErrUnknownNodeType — тип узла не зарегистрирован в локальном реестре.
	ErrUnknownNodeType = errors.New("unknown node type")

	// ErrInvalidRequest — тело запроса не разбирается или не содержит nodeType.
	ErrInvalidRequest = errors.New("invalid request")

	// ErrOverloaded — не дождались свободного слота выполнения.
	ErrOverloaded = errors.New("worker overloaded")
)
