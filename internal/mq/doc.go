// Package mq публикует события выполнения в RabbitMQ и читает их обратно.
//
// Структура:
//   - connection.go — соединение с брокером: переподключение с backoff и
//     повторное объявление exchange после каждого подключения
//   - topology.go   — exchange nodeflow.events и очереди подписчиков
//   - publisher.go  — Publisher и буферизованный EventPublisher (events.Observer)
//   - consumer.go   — потребление событий из очереди
//
// Routing key события — его тип с точкой вместо двоеточия:
// workflow.completed, node.executionFailed. Подписчик выбирает события
// шаблоном topic exchange, например "workflow.*" или "#".
package mq
