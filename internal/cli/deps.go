package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/goccy/go-json"

	"github.com/shaiso/Nodeflow/internal/config"
	"github.com/shaiso/Nodeflow/internal/events"
	"github.com/shaiso/Nodeflow/internal/executor"
	"github.com/shaiso/Nodeflow/internal/telemetry"
)

// Deps — ленивые зависимости команд. Функции вызываются внутри RunE,
// после разбора persistent флагов.
type Deps struct {
	Client func() *Client
	Output func() *Output
	Config func() (*config.Config, error)
}

// cliLogger пишет в stderr в текстовом формате, чтобы не смешиваться
// с данными в stdout.
func cliLogger(cfg *config.Config) *slog.Logger {
	return telemetry.NewLogger(os.Stderr, cfg.LogLevel, "text")
}

// newLocalController создаёт контроллер в процессе CLI.
func newLocalController(ctx context.Context, cfg *config.Config, observer events.Observer) (*executor.Controller, func() error, error) {
	store, closeCache, err := cfg.OpenCache(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("open cache: %w", err)
	}

	logger := cliLogger(cfg)
	ec := cfg.ExecutorConfig(store)
	ec.Observer = events.Combine(events.NewLogObserver(logger), observer)
	ec.Logger = logger

	c, err := executor.New(ec)
	if err != nil {
		_ = closeCache()
		return nil, nil, err
	}
	return c, closeCache, nil
}

// parseInputs разбирает пары KEY=VALUE. VALUE, являющийся валидным
// JSON, декодируется; иначе остаётся строкой.
func parseInputs(pairs []string) (map[string]any, error) {
	if len(pairs) == 0 {
		return nil, nil
	}

	inputs := make(map[string]any, len(pairs))
	for _, kv := range pairs {
		key, raw, ok := strings.Cut(kv, "=")
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid input format %q, expected KEY=VALUE", kv)
		}

		var v any
		if err := json.Unmarshal([]byte(raw), &v); err != nil {
			v = raw
		}
		inputs[key] = v
	}
	return inputs, nil
}

// formatValue — компактное представление результата узла для таблиц.
func formatValue(v any) string {
	if v == nil {
		return "-"
	}
	if s, ok := v.(string); ok {
		return s
	}
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	const maxLen = 60
	if len(b) > maxLen {
		return string(b[:maxLen-3]) + "..."
	}
	return string(b)
}
