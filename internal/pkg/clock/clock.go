// Package clock абстрагирует время и отложенные задачи, чтобы таймеры викторины
// можно было прокручивать в тестах без реального ожидания.
package clock

import "time"

// Timer - отменяемая отложенная задача.
type Timer interface {
	// Stop отменяет задачу. Возвращает false, если задача уже выполнена или отменена.
	Stop() bool
}

// Clock - источник текущего времени и планировщик отложенных задач.
type Clock interface {
	Now() time.Time
	// AfterFunc выполняет f в отдельной горутине (или синхронно в Fake) через d.
	AfterFunc(d time.Duration, f func()) Timer
}

type realClock struct{}

// New возвращает часы на основе пакета time.
func New() Clock {
	return realClock{}
}

func (realClock) Now() time.Time {
	return time.Now()
}

func (realClock) AfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}
