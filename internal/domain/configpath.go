package domain

import (
	"fmt"
	"strings"
)

// reservedSegments — сегменты пути, которые нельзя использовать в конфигурации.
var reservedSegments = map[string]struct{}{
	"__proto__":   {},
	"constructor": {},
	"prototype":   {},
}

// SetConfigPath возвращает новую конфигурацию, в которой по пути path
// установлено значение value.
//
// Исходное дерево не изменяется: копируются только map на пути
// от корня до изменяемого ключа, остальные поддеревья разделяются.
// Недостающие промежуточные объекты создаются.
func SetConfigPath(config map[string]any, path []string, value any) (map[string]any, error) {
	if err := checkPath(path); err != nil {
		return nil, err
	}
	return setAt(config, path, value, 0)
}

// setAt рекурсивно копирует уровень depth и спускается дальше по пути.
func setAt(node map[string]any, path []string, value any, depth int) (map[string]any, error) {
	next := make(map[string]any, len(node)+1)
	for k, v := range node {
		next[k] = v
	}

	key := path[depth]
	if depth == len(path)-1 {
		next[key] = value
		return next, nil
	}

	var child map[string]any
	switch existing := node[key].(type) {
	case nil:
		child = nil
	case map[string]any:
		child = existing
	default:
		return nil, fmt.Errorf("%w: %s is %T", ErrPathNotObject,
			strings.Join(path[:depth+1], "."), existing)
	}

	updated, err := setAt(child, path, value, depth+1)
	if err != nil {
		return nil, err
	}
	next[key] = updated
	return next, nil
}

// GetConfigPath возвращает значение по пути и признак его наличия.
func GetConfigPath(config map[string]any, path []string) (any, bool) {
	if len(path) == 0 {
		return nil, false
	}

	var current any = config
	for _, segment := range path {
		m, ok := current.(map[string]any)
		if !ok {
			return nil, false
		}
		current, ok = m[segment]
		if !ok {
			return nil, false
		}
	}
	return current, true
}

// SplitPath разбивает путь вида "a.b.c" на сегменты.
func SplitPath(path string) []string {
	if path == "" {
		return nil
	}
	return strings.Split(path, ".")
}

// checkPath проверяет сегменты пути.
func checkPath(path []string) error {
	if len(path) == 0 {
		return ErrEmptyPath
	}
	for i, segment := range path {
		if segment == "" {
			return fmt.Errorf("%w: segment %d", ErrEmptyPathSegment, i)
		}
		if _, reserved := reservedSegments[segment]; reserved {
			return fmt.Errorf("%w: %q", ErrReservedPathSegment, segment)
		}
	}
	return nil
}
