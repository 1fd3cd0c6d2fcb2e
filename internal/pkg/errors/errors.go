package errors

import (
	"errors"
	"fmt"
)

// Категории ошибок приложения. Обработчики сопоставляют их с HTTP-кодами.
var (
	// ErrNotFound используется, когда запись или ресурс не найдены.
	ErrNotFound = errors.New("record not found")

	// ErrUnauthorized используется для ошибок авторизации (неверный токен, нет прав).
	ErrUnauthorized = errors.New("unauthorized")

	// ErrForbidden используется, когда у пользователя недостаточно прав для действия.
	ErrForbidden = errors.New("forbidden")

	// ErrValidation используется для ошибок валидации входных данных.
	ErrValidation = errors.New("validation failed")

	// ErrConflict используется для конфликтов состояния (повторная регистрация, повторный ответ и т.п.).
	ErrConflict = errors.New("resource state conflict")

	// ErrStorage оборачивает сбои хранилища (БД, Redis).
	ErrStorage = errors.New("storage failure")
)

// Доменные ошибки викторины. Каждая оборачивает одну из категорий выше,
// поэтому errors.Is работает на обоих уровнях.
var (
	ErrAlreadyRegistered     = fmt.Errorf("%w: user already registered for quiz", ErrConflict)
	ErrRegistrationClosed    = fmt.Errorf("%w: registration is closed", ErrConflict)
	ErrSessionAlreadyStarted = fmt.Errorf("%w: quiz has already started", ErrConflict)
	ErrSessionNotActive      = fmt.Errorf("%w: quiz is not active", ErrConflict)
	ErrDuplicateAnswer       = fmt.Errorf("%w: question already answered", ErrConflict)
	ErrAlreadyFinalized      = fmt.Errorf("%w: quiz already finalized", ErrConflict)
	ErrUnknownQuestion       = fmt.Errorf("%w: question does not belong to quiz", ErrNotFound)
	ErrNotParticipant        = fmt.Errorf("%w: user is not registered for quiz", ErrNotFound)
	ErrPaymentRequired       = fmt.Errorf("%w: payment not confirmed", ErrForbidden)
)

// Storage оборачивает низкоуровневую ошибку хранилища в ErrStorage, сохраняя исходную причину.
func Storage(op string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%w: %s: %w", ErrStorage, op, err)
}
