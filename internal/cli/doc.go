// Package cli реализует инструмент командной строки Conductor.
//
// # Обзор
//
// CLI работает в двух режимах:
//
//   - Клиент API: команды flow, run, schedule, tasks ходят в Conductor
//     API по HTTP и не требуют локального реестра задач.
//   - Локальное выполнение: команды exec и visualize работают с файлом
//     flow DSL напрямую, без сервера. exec выполняет flow in-process
//     со встроенным реестром задач и хранилищем в памяти.
//
// # Ключевые компоненты
//
// ## Client
//
// HTTP-клиент для Conductor API. Инкапсулирует все HTTP-запросы,
// парсинг ответов (DataResponse, ListResponse, ErrorResponse)
// и обработку ошибок.
//
//	client := cli.NewClient("http://localhost:8080")
//	flows, err := client.ListFlows()
//
// ## Output
//
// Форматирование вывода. Поддерживает два режима:
//   - Таблицы (text/tabwriter) — по умолчанию
//   - JSON (json.MarshalIndent) — с флагом --json
//
// Данные выводятся в stdout, сообщения (Success/Error) — в stderr.
// Это позволяет использовать pipe: conductor flow list --json | jq .
//
// ## Commands
//
// Cobra-команды организованы по ресурсам:
//   - flow:     list, register, show, update
//   - run:      list, start, show, tasks
//   - schedule: list, create, show, update, delete, enable, disable
//   - tasks:    список задач реестра
//   - exec:     локальное выполнение flow из файла
//   - visualize: Mermaid/DOT диаграмма flow из файла
//
// Каждая группа создаётся через фабричную функцию (NewFlowCmd и т.д.),
// принимающую clientFn и outputFn — замыкания для ленивого создания
// Client и Output после парсинга PersistentFlags.
package cli
