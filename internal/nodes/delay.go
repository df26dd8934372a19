package nodes

import (
	"context"
	"fmt"
	"math/rand/v2"
	"time"
)

// DelayNode — узел задержки.
//
// Ожидает указанное время, затем пропускает вход дальше.
// Поддерживает отмену через context.
//
// Конфигурация:
//   - duration_ms (number): задержка в миллисекундах
//   - duration_sec (number): задержка в секундах, если duration_ms не задан (default: 1)
type DelayNode struct{}

// NewDelayNode создаёт новый DelayNode.
func NewDelayNode() *DelayNode {
	return &DelayNode{}
}

// Process выполняет задержку.
func (n *DelayNode) Process(ctx context.Context, req *Request) (any, error) {
	var duration time.Duration
	if ms := GetFloat(req.Data, "duration_ms", 0); ms > 0 {
		duration = time.Duration(ms * float64(time.Millisecond))
	} else {
		sec := GetFloat(req.Data, "duration_sec", 1)
		if sec <= 0 {
			sec = 1
		}
		duration = time.Duration(sec * float64(time.Second))
	}

	timer := time.NewTimer(duration)
	defer timer.Stop()

	select {
	case <-timer.C:
	case <-ctx.Done():
		return nil, fmt.Errorf("%w: %v", ErrCancelled, ctx.Err())
	}

	switch len(req.Inputs) {
	case 0:
		return map[string]any{"delayed_ms": duration.Milliseconds()}, nil
	case 1:
		for _, v := range req.Inputs {
			return v, nil
		}
	}
	return req.Inputs, nil
}

// RandomNode — генератор случайного числа.
//
// Конфигурация:
//   - min (number): нижняя граница (default: 0)
//   - max (number): верхняя граница (default: 1)
//   - precision (number): знаков после запятой (default: без округления)
type RandomNode struct{}

// NewRandomNode создаёт новый RandomNode.
func NewRandomNode() *RandomNode {
	return &RandomNode{}
}

// Process возвращает случайное число в [min, max).
func (n *RandomNode) Process(_ context.Context, req *Request) (any, error) {
	lo := GetFloat(req.Data, "min", 0)
	hi := GetFloat(req.Data, "max", 1)
	if hi < lo {
		return nil, fmt.Errorf("%w: %s: max < min", ErrInvalidConfig, TypeRandom)
	}

	v := lo + rand.Float64()*(hi-lo)
	if _, ok := req.Data["precision"]; ok {
		v = round(v, GetInt(req.Data, "precision"))
	}
	return v, nil
}

// TimestampNode — текущее время.
//
// Конфигурация:
//   - format (string): "unix", "unix_ms" или layout time.Format (default: RFC3339Nano)
type TimestampNode struct {
	now func() time.Time
}

// NewTimestampNode создаёт новый TimestampNode.
func NewTimestampNode() *TimestampNode {
	return &TimestampNode{now: time.Now}
}

// Process возвращает текущее время в заданном формате.
func (n *TimestampNode) Process(_ context.Context, req *Request) (any, error) {
	t := n.now().UTC()

	switch format := GetString(req.Data, "format"); format {
	case "unix":
		return t.Unix(), nil
	case "unix_ms":
		return t.UnixMilli(), nil
	case "":
		return t.Format(time.RFC3339Nano), nil
	default:
		return t.Format(format), nil
	}
}
