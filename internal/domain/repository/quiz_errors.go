package repository

import (
	"fmt"

	apperrors "github.com/yourusername/quiz-engine/internal/pkg/errors"
)

// ErrCountdownAlreadyAnnounced означает, что обратный отсчет для викторины уже объявлен.
// Планировщик трактует это как повторный (идемпотентный) вызов start.
var ErrCountdownAlreadyAnnounced = fmt.Errorf("%w: countdown already announced", apperrors.ErrConflict)
