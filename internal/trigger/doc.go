// Package trigger запускает workflow по расписанию.
//
// Расписание задаётся cron-выражением из пяти полей
// ("*/5 * * * *") или дескриптором robfig/cron ("@hourly",
// "@every 30s"). Необязательный Timezone интерпретирует выражение
// в указанной зоне.
//
// Использование:
//
//	t := trigger.New(trigger.Config{
//	    Executor: controller,
//	    Logger:   logger,
//	})
//
//	if _, err := t.Add(trigger.Schedule{
//	    Name:     "nightly",
//	    Expr:     "0 3 * * *",
//	    Workflow: spec,
//	}); err != nil {
//	    return err
//	}
//
//	t.Start()
//	defer t.Stop(ctx)
//
// Если предыдущий run ещё выполняется, контроллер отвечает
// engine.ErrAlreadyRunning; такой запуск пропускается и не считается
// ошибкой.
package trigger
