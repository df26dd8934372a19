// Nodeflow CLI — выполнение и проверка workflow локально,
// управление сервером через HTTP API.
//
// Использование:
//
//	nodeflow [--server URL] [--config FILE] [--json] <command> [flags]
//
// Команды:
//
//	run         Выполнить workflow из файла
//	validate    Проверить workflow и вывести уровни
//	schedule    Запуск workflow по cron-расписанию
//	events      Поток событий выполнения из RabbitMQ
//	status      Состояние контроллера на сервере
//	pause       Приостановить выполнение
//	resume      Продолжить выполнение
//	stop        Остановить выполнение
//	history     Последние выполнения
//	show        Детали выполнения
//	stats       Статистика выполнений
//	cache       Управление кэшем результатов
//	node-types  Зарегистрированные типы узлов
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/shaiso/Nodeflow/internal/cli"
)

// version задаётся через ldflags при сборке.
var version = "dev"

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := cli.NewRootCmd(version).ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		cancel()
		os.Exit(1)
	}
}
