// Package locale holds the translation table shared by the mini app's Go
// services.
package locale

import (
	"fmt"

	"golang.org/x/text/language"
)

// Fallback is used when neither the requested language nor the key exists.
const Fallback = "en"

var supported = []language.Tag{
	language.English, // first entry is the matcher's default
	language.Russian,
}

var matcher = language.NewMatcher(supported)

var tables = map[string]map[string]string{
	"en": {
		"offline.error":        "offline",
		"offline.message":      "You are offline. Showing saved data where possible.",
		"offline.unavailable":  "This resource is not available offline.",
		"http.not_found":       "Not found",
		"http.server_error":    "Internal server error",
		"http.bad_gateway":     "Upstream is unavailable",
		"export.no_token":      "Sign in to export data",
		"tx.income":            "Income",
		"tx.expense":           "Expense",
		"tx.transfer":          "Transfer",
		"budget.exceeded":      "Budget exceeded by %s",
		"summary.balance":      "Balance",
		"summary.period.week":  "Week",
		"summary.period.month": "Month",
		"summary.period.year":  "Year",
	},
	"ru": {
		"offline.error":        "offline",
		"offline.message":      "Нет соединения. Показаны сохранённые данные.",
		"offline.unavailable":  "Этот ресурс недоступен офлайн.",
		"http.not_found":       "Не найдено",
		"http.server_error":    "Внутренняя ошибка сервера",
		"http.bad_gateway":     "Сервер недоступен",
		"export.no_token":      "Войдите, чтобы экспортировать данные",
		"tx.income":            "Доход",
		"tx.expense":           "Расход",
		"tx.transfer":          "Перевод",
		"budget.exceeded":      "Бюджет превышен на %s",
		"summary.balance":      "Баланс",
		"summary.period.week":  "Неделя",
		"summary.period.month": "Месяц",
		"summary.period.year":  "Год",
	},
}

// Match picks the best supported language for an Accept-Language header
// value. An empty or unparsable header yields Fallback.
func Match(acceptLanguage string) string {
	tags, _, err := language.ParseAcceptLanguage(acceptLanguage)
	if err != nil || len(tags) == 0 {
		return Fallback
	}
	tag, _, _ := matcher.Match(tags...)
	base, _ := tag.Base()
	if _, ok := tables[base.String()]; !ok {
		return Fallback
	}
	return base.String()
}

// T translates key into lang, falling back to English and then to the key
// itself.
func T(lang, key string) string {
	if s, ok := tables[lang][key]; ok {
		return s
	}
	if s, ok := tables[Fallback][key]; ok {
		return s
	}
	return key
}

// Tf is T followed by fmt.Sprintf.
func Tf(lang, key string, args ...any) string {
	return fmt.Sprintf(T(lang, key), args...)
}

// Languages lists the languages with a table.
func Languages() []string {
	out := make([]string, 0, len(supported))
	for _, t := range supported {
		base, _ := t.Base()
		out = append(out, base.String())
	}
	return out
}
