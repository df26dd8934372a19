// Package cache хранит результаты узлов между run'ами.
//
// Ключ кэша — SHA-256 от канонического JSON (тип узла, ID узла,
// данные узла, входы). Канонический JSON сортирует ключи map, поэтому
// порядок ключей во входах не влияет на ключ. Решение о том, можно ли
// кэшировать узел, принимает scheduler.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"

	"github.com/goccy/go-json"
)

// ErrUnhashable — данные или входы узла не сериализуются в JSON.
var ErrUnhashable = errors.New("cache key: value is not serializable")

// Store — хранилище результатов узлов.
type Store interface {
	// Get возвращает значение по ключу. found=false при промахе.
	Get(ctx context.Context, key string) (value any, found bool, err error)

	// Set сохраняет значение.
	Set(ctx context.Context, key string, value any) error

	// Clear удаляет все записи.
	Clear(ctx context.Context) error

	// Len возвращает количество записей.
	Len(ctx context.Context) (int, error)
}

type keyMaterial struct {
	NodeType string         `json:"t"`
	NodeID   string         `json:"id"`
	Data     map[string]any `json:"d"`
	Inputs   map[string]any `json:"in"`
}

// Key вычисляет ключ кэша для узла.
func Key(nodeType, nodeID string, data, inputs map[string]any) (string, error) {
	b, err := json.Marshal(keyMaterial{
		NodeType: nodeType,
		NodeID:   nodeID,
		Data:     data,
		Inputs:   inputs,
	})
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUnhashable, err)
	}

	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:]), nil
}
