// Package executor управляет жизненным циклом выполнения workflow.
//
// Controller принимает WorkflowSpec, строит граф, запускает scheduler
// и финализирует Execution. Поддерживает паузу, возобновление и
// остановку активных run'ов, хранит ограниченную историю выполнений
// и агрегированную статистику.
//
// Пауза и остановка действуют на границе уровней: уже запущенные
// узлы текущего уровня доработают до конца или до таймаута.
package executor
