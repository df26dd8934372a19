// Package worker — HTTP сервер remote execution API.
//
// Worker выполняет узлы, которые движок делегирует remote обработчику
// (nodes.Remote). Запрос и ответ имеют форму nodes.RemoteRequest и
// nodes.RemoteResponse:
//
//	POST /execute
//	{"nodeId": "n1", "nodeType": "transform", "nodeData": {...}, "inputs": {...}}
//
//	200 {"output": 20}
//	200 {"error": "division by zero"}
//
// Тип узла разрешается только по локальному реестру worker'а: remote
// обработчик реестра игнорируется, чтобы запрос не ушёл по кругу.
//
// Выполнение идёт через invoker, поэтому у узла те же таймаут и
// восстановление после паники, что и в движке. Число одновременно
// выполняемых узлов ограничено семафором.
//
//	w := worker.New(worker.Config{
//	    Registry: nodes.DefaultRegistry(),
//	    Logger:   logger,
//	})
//	mux := http.NewServeMux()
//	w.RegisterRoutes(mux)
package worker
