// Package engine выполняет DAG задач.
//
// Движок запускает задачи в порядке зависимостей — последовательно
// или параллельно — собирая вход каждой задачи из входа flow и
// выходов её родителей, и порождает FlowRun с записью о каждой задаче.
//
// Гарантия: последовательный и параллельный режимы дают одинаковый
// финальный статус flow и одинаковый итоговый результат для одного
// и того же графа и входа; различаются только время и порядок
// выполнения независимых соседей.
package engine
