// Package dsl разбирает текстовый язык описания flow.
//
// Грамматика построчная, без рекурсивного спуска:
//
//	flow Pipeline:
//	    description: "Ночная синхронизация"
//	    fetch -> clean
//	    clean -> load, report
//
// Заголовок "flow <Name>:" обязателен, описание необязательно,
// остальные непустые строки — рёбра зависимостей. Отступ отмечает
// принадлежность строки блоку flow; пустые строки и комментарии
// (начинаются с "#") игнорируются. Порядок объявления рёбер
// сохраняется в результате разбора.
package dsl
