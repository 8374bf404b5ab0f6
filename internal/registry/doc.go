// Package registry — явный реестр задач.
//
// Реестр связывает имя задачи из DSL с Go-функцией и необязательными
// валидаторами входа/выхода. Реестр — обычный объект, а не глобальное
// состояние: процесс может держать несколько изолированных реестров
// (удобно в тестах). Наполняется явными вызовами Register.
package registry
