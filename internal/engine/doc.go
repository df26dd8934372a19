// Package engine превращает WorkflowSpec в граф выполнения.
//
// Включает:
//   - parser.go — парсинг WorkflowSpec из JSON, структурная валидация
//   - hcl.go    — парсинг WorkflowSpec из HCL (блоки node и connection)
//   - graph.go  — построение графа, уровни, фильтрация по стартовому узлу
//   - errors.go — ошибки валидации и выполнения
//
// Уровень узла: 0 для узлов без зависимостей, иначе 1 + максимальный
// уровень зависимостей. Узлы одного уровня независимы и могут
// выполняться параллельно.
package engine
