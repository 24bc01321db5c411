// Package risk оценивает уровень академического риска студента.
//
// Есть две стратегии: эвристика из именованных правил и случайный лес,
// обученный на метках эвристики. Estimator выбирает стратегию по полноте
// данных и при любой ошибке модели возвращается к эвристике.
package risk

import (
	"fmt"
	"strings"
)

// Level - уровень риска. Порядок: Desconocido < Bajo < Medio < Alto.
// LevelError не участвует в упорядочивании и означает сбой обработки студента.
type Level int

const (
	LevelError   Level = -1
	LevelUnknown Level = 0
	LevelLow     Level = 1
	LevelMedium  Level = 2
	LevelHigh    Level = 3
)

// String возвращает испанскую метку уровня.
func (l Level) String() string {
	switch l {
	case LevelUnknown:
		return "Desconocido"
	case LevelLow:
		return "Bajo"
	case LevelMedium:
		return "Medio"
	case LevelHigh:
		return "Alto"
	case LevelError:
		return "Error"
	default:
		return fmt.Sprintf("Level(%d)", int(l))
	}
}

// IsValid сообщает, что уровень - один из известных.
func (l Level) IsValid() bool {
	return l >= LevelError && l <= LevelHigh
}

// ParseLevel разбирает испанскую метку (регистр не важен).
func ParseLevel(s string) (Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "desconocido":
		return LevelUnknown, nil
	case "bajo":
		return LevelLow, nil
	case "medio":
		return LevelMedium, nil
	case "alto":
		return LevelHigh, nil
	case "error":
		return LevelError, nil
	default:
		return LevelUnknown, fmt.Errorf("unknown risk level %q", s)
	}
}

// AllLevels - уровни в порядке возрастания, без LevelError.
var AllLevels = []Level{LevelUnknown, LevelLow, LevelMedium, LevelHigh}
