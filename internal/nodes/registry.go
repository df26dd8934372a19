package nodes

import (
	"fmt"
	"sort"
	"sync"
)

// BindingKind — способ выполнения узла.
type BindingKind string

const (
	// BindingLocal — in-process обработчик из реестра.
	BindingLocal BindingKind = "local"

	// BindingRemote — вызов generic remote execution API.
	BindingRemote BindingKind = "remote"
)

// Binding — обработчик, разрешённый для типа узла.
//
// Binding вычисляется один раз при построении графа, а не на каждый вызов.
type Binding struct {
	// Kind — local или remote.
	Kind BindingKind

	// Type — тип узла.
	Type string

	// Handler — обработчик для вызова.
	Handler Handler

	// Cacheable — результат детерминирован и может кэшироваться.
	Cacheable bool
}

// Option — опция регистрации обработчика.
type Option func(*entry)

// NonCacheable помечает тип узла как недетерминированный
// (время, случайность, внешний I/O): результаты не кэшируются.
func NonCacheable() Option {
	return func(e *entry) {
		e.cacheable = false
	}
}

type entry struct {
	handler   Handler
	cacheable bool
}

// Registry — реестр обработчиков узлов.
//
// Содержит локальные обработчики по типу узла и необязательный
// remote-обработчик, который используется для всех неизвестных типов.
// Потокобезопасен.
type Registry struct {
	mu           sync.RWMutex
	handlers     map[string]entry
	remote       Handler
	nonCacheable map[string]bool
}

// NewRegistry создаёт пустой реестр.
func NewRegistry() *Registry {
	return &Registry{
		handlers:     make(map[string]entry),
		nonCacheable: make(map[string]bool),
	}
}

// DefaultRegistry создаёт реестр со всеми встроенными типами узлов.
func DefaultRegistry() *Registry {
	r := NewRegistry()

	r.Register(TypeInput, NewInputNode())
	r.Register(TypeTransform, NewTransformNode())
	r.Register(TypeCombine, NewCombineNode())
	r.Register(TypeOutput, NewOutputNode())
	r.Register(TypeDelay, NewDelayNode(), NonCacheable())
	r.Register(TypeHTTP, NewHTTPNode(), NonCacheable())
	r.Register(TypeRandom, NewRandomNode(), NonCacheable())
	r.Register(TypeTimestamp, NewTimestampNode(), NonCacheable())

	return r
}

// Register регистрирует обработчик для типа узла.
// Если обработчик с таким типом уже существует, он будет перезаписан.
func (r *Registry) Register(nodeType string, handler Handler, opts ...Option) {
	e := entry{handler: handler, cacheable: true}
	for _, opt := range opts {
		opt(&e)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.handlers[nodeType] = e
}

// RegisterFunc регистрирует функцию как обработчик.
func (r *Registry) RegisterFunc(nodeType string, fn HandlerFunc, opts ...Option) {
	r.Register(nodeType, fn, opts...)
}

// SetRemote задаёт remote-обработчик для типов без локального обработчика.
func (r *Registry) SetRemote(handler Handler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.remote = handler
}

// Remote возвращает remote-обработчик (может быть nil).
func (r *Registry) Remote() Handler {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.remote
}

// MarkNonCacheable помечает типы как некэшируемые независимо от
// того, local они или remote.
func (r *Registry) MarkNonCacheable(nodeTypes ...string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, t := range nodeTypes {
		r.nonCacheable[t] = true
	}
}

// Resolve возвращает Binding для типа узла.
//
// Локальный обработчик имеет приоритет; если его нет, используется
// remote. Возвращает ErrUnknownType, если нет ни того, ни другого.
func (r *Registry) Resolve(nodeType string) (Binding, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if e, ok := r.handlers[nodeType]; ok {
		return Binding{
			Kind:      BindingLocal,
			Type:      nodeType,
			Handler:   e.handler,
			Cacheable: e.cacheable && !r.nonCacheable[nodeType],
		}, nil
	}

	if r.remote != nil {
		return Binding{
			Kind:      BindingRemote,
			Type:      nodeType,
			Handler:   r.remote,
			Cacheable: !r.nonCacheable[nodeType],
		}, nil
	}

	return Binding{}, fmt.Errorf("%w: %s", ErrUnknownType, nodeType)
}

// Lookup возвращает локальный обработчик без учёта remote.
func (r *Registry) Lookup(nodeType string) (Handler, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	e, ok := r.handlers[nodeType]
	return e.handler, ok
}

// Has проверяет, зарегистрирован ли локальный обработчик.
func (r *Registry) Has(nodeType string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, exists := r.handlers[nodeType]
	return exists
}

// Types возвращает список всех зарегистрированных типов.
func (r *Registry) Types() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	types := make([]string, 0, len(r.handlers))
	for t := range r.handlers {
		types = append(types, t)
	}
	sort.Strings(types)
	return types
}

// Count возвращает количество зарегистрированных типов.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.handlers)
}

// Unregister удаляет обработчик из реестра.
func (r *Registry) Unregister(nodeType string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.handlers, nodeType)
}
