// Package cli реализует инструмент командной строки Nodeflow.
//
// # Обзор
//
// CLI работает в двух режимах:
//   - локально: run, validate и schedule run выполняют workflow
//     в процессе CLI через executor.Controller;
//   - против сервера: status, pause, resume, stop, history, show,
//     stats, cache clear, node-types, а также run --remote и
//     validate --remote обращаются к HTTP API.
//
// Команда events подписывается на exchange nodeflow.events в RabbitMQ
// и печатает события выполнения, опубликованные сервером.
//
// # Ключевые компоненты
//
// ## Client
//
// HTTP-клиент для Nodeflow API. Инкапсулирует HTTP-запросы,
// парсинг ответов (DataResponse, ListResponse, ErrorResponse)
// и обработку ошибок (APIError).
//
//	client := cli.NewClient("http://localhost:8080", 0)
//	status, err := client.Status()
//
// ## Output
//
// Форматирование вывода. Поддерживает два режима:
//   - Таблицы (text/tabwriter) — по умолчанию
//   - JSON — с флагом --json
//
// Данные выводятся в stdout, сообщения (Infof/Errorf) — в stderr.
// Это позволяет использовать pipe: nodeflow history --json | jq .
//
// ## Commands
//
// Каждая команда создаётся фабричной функцией (NewRunCmd и т.д.),
// принимающей Deps — замыкания для ленивого создания Client, Output
// и config.Config после парсинга PersistentFlags.
package cli
