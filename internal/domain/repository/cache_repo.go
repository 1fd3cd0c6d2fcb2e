package repository

import (
	"context"
	"time"
)

// CacheRepository определяет методы для работы с кешем
type CacheRepository interface {
	Delete(ctx context.Context, key string) error
	SetJSON(ctx context.Context, key string, value interface{}, expiration time.Duration) error
	// GetJSON возвращает ErrNotFound, если ключа нет
	GetJSON(ctx context.Context, key string, dest interface{}) error
	// SetNX устанавливает значение, только если ключа нет. true - ключ установлен этим вызовом.
	SetNX(ctx context.Context, key string, value interface{}, expiration time.Duration) (bool, error)
}
