package trigger

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
)

// ErrEmptyExpr — у расписания нет выражения.
var ErrEmptyExpr = errors.New("schedule expression is empty")

// cronParser — парсер выражений: пять полей или дескриптор.
var cronParser = cron.NewParser(
	cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor,
)

// ParseExpr разбирает выражение с учётом timezone.
// Пустой или неизвестный timezone означает UTC.
func ParseExpr(expr, timezone string) (cron.Schedule, error) {
	expr = strings.TrimSpace(expr)
	if expr == "" {
		return nil, ErrEmptyExpr
	}

	if _, err := time.LoadLocation(timezone); err != nil || timezone == "" {
		timezone = "UTC"
	}

	sched, err := cronParser.Parse("CRON_TZ=" + timezone + " " + expr)
	if err != nil {
		return nil, fmt.Errorf("invalid schedule expression %q: %w", expr, err)
	}
	return sched, nil
}

// ValidateExpr проверяет выражение расписания.
func ValidateExpr(expr string) error {
	_, err := ParseExpr(expr, "")
	return err
}

// NextRun вычисляет время следующего запуска после from, в UTC.
func NextRun(expr, timezone string, from time.Time) (time.Time, error) {
	sched, err := ParseExpr(expr, timezone)
	if err != nil {
		return time.Time{}, err
	}
	return sched.Next(from).UTC(), nil
}

// cronLogger адаптирует slog к cron.Logger.
type cronLogger struct {
	logger *slog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.logger.Debug("cron: "+msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.logger.Error("cron: "+msg, append(keysAndValues, "error", err)...)
}
