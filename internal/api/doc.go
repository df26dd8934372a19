// Package api содержит HTTP API сервер Nodeflow.
//
// Структура:
//   - handler.go           — Handler с зависимостями (controller, архив, hub, logger)
//   - routes.go            — регистрация маршрутов
//   - middleware.go        — middleware (logging, recovery)
//   - response.go          — унифицированные JSON-ответы и обработка ошибок
//   - dto.go               — запросы и ответы
//   - execution_handler.go — запуск и просмотр выполнений
//   - control_handler.go   — pause/resume/stop, статус, статистика, кэш, валидация
//   - websocket.go         — поток событий выполнения по WebSocket
package api
