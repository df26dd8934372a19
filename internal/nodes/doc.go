// Package nodes содержит обработчики узлов workflow и реестр типов.
//
// # Обзор
//
// Обработчик (Handler) получает Request с данными узла (Data) и
// разрешёнными входами (Inputs) и возвращает непрозрачный результат.
// Scheduler не интерпретирует ни данные, ни результат.
//
// # Registry
//
// Registry сопоставляет тип узла с обработчиком:
//
//	registry := nodes.DefaultRegistry()
//	registry.SetRemote(nodes.NewRemote("http://worker:8081/execute"))
//	binding, err := registry.Resolve("transform")
//
// Разрешение выполняется один раз при построении графа. Локальный
// обработчик имеет приоритет над remote; без обоих возвращается
// ErrUnknownType.
//
// Обработчик может вернуть ErrNotProcessed, тогда invoker повторяет
// вызов через remote-обработчик реестра.
//
// # Кэшируемость
//
// Недетерминированные типы (delay, http, random, timestamp)
// регистрируются с NonCacheable(); их результаты никогда не берутся из кэша.
//
// # Встроенные типы
//
//	input      — значение из inputs по data.key или литерал data.value
//	transform  — арифметика над числовым входом (multiply, add, ...)
//	combine    — sum, product, concat, merge, list по входам
//	output     — сток: один вход как есть, data.key или map входов
//	delay      — задержка duration_ms / duration_sec
//	http       — HTTP запрос
//	random     — случайное число в [min, max)
//	timestamp  — текущее время
//
// # Remote
//
// Remote отправляет POST {nodeId, nodeType, nodeData, inputs, executionId}
// и ожидает {output} или {error}.
package nodes
