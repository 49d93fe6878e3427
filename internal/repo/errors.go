package repo

import "errors"

// Ошибки хранилищ. Реализации в Postgres и в памяти возвращают одни и те же.
var (
	// ErrNotFound — workflow или run не найден.
	ErrNotFound = errors.New("record not found")

	// ErrAlreadyExists — workflow с таким ID уже есть.
	ErrAlreadyExists = errors.New("record already exists")

	// ErrMissingID — у записи пустой ID (workflow.ID или RunID).
	ErrMissingID = errors.New("record id is empty")
)
