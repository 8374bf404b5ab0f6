// Package graph строит и валидирует граф зависимостей задач.
//
// Build превращает FlowDefinition в DAG: проверяет, что каждое имя
// разрешается в реестре задач, что граф ацикличен, и вычисляет
// стабильный топологический порядок (алгоритм Кана, ничьи разрешаются
// порядком объявления). Именно этот порядок использует движок
// в последовательном режиме и при слиянии выходов родителей.
package graph
