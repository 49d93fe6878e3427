package domain

import "errors"

// Ошибки работы с путями конфигурации.
var (
	// ErrEmptyPath — путь не содержит сегментов.
	ErrEmptyPath = errors.New("config path is empty")

	// ErrEmptyPathSegment — один из сегментов пути пустой.
	ErrEmptyPathSegment = errors.New("config path has empty segment")

	// ErrReservedPathSegment — сегмент пути зарезервирован.
	ErrReservedPathSegment = errors.New("config path segment is reserved")

	// ErrPathNotObject — промежуточное значение на пути не является объектом.
	ErrPathNotObject = errors.New("config path traverses a non-object value")
)
