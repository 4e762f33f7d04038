// errors.go — сентинельные ошибки сервисного слоя api-module.
// Handlers сопоставляют их HTTP-статусам; текст ошибки отдаётся клиенту.
package service

import "errors"

var (
	// ErrNotFound — ресурс не найден. Возвращается и при попытке доступа
	// к чужому ресурсу: существование чужих ресурсов не раскрывается.
	ErrNotFound = errors.New("ресурс не найден")

	// ErrValidation — невалидные входные данные.
	ErrValidation = errors.New("невалидные данные")

	// ErrForbidden — операция запрещена для текущей учётной записи.
	ErrForbidden = errors.New("операция запрещена")

	// ErrConflict — конфликт с существующим ресурсом.
	ErrConflict = errors.New("конфликт")
)
