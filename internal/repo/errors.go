package repo

import "errors"

// Общие ошибки репозиториев.
var (
	// ErrNotFound — запись не найдена в БД.
	ErrNotFound = errors.New("not found")

	// ErrNotFinished — попытка архивировать незавершённое выполнение.
	ErrNotFinished = errors.New("execution is not finished")
)
