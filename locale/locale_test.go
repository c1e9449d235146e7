package locale

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMatch(t *testing.T) {
	tests := []struct {
		header string
		want   string
	}{
		{"", "en"},
		{"ru-RU,ru;q=0.9,en;q=0.8", "ru"},
		{"en-GB", "en"},
		{"de-DE", "en"},
		{"fr;q=0.9, ru;q=0.5", "ru"},
	}

	for _, tt := range tests {
		t.Run(tt.header, func(t *testing.T) {
			assert.Equal(t, tt.want, Match(tt.header))
		})
	}
}

func TestT_Fallbacks(t *testing.T) {
	assert.Equal(t, "Доход", T("ru", "tx.income"))
	assert.Equal(t, "Income", T("de", "tx.income"))
	assert.Equal(t, "missing.key", T("ru", "missing.key"))
}

func TestTf(t *testing.T) {
	assert.Equal(t, "Budget exceeded by 10 USD", Tf("en", "budget.exceeded", "10 USD"))
}

func TestTablesHaveSameKeys(t *testing.T) {
	for key := range tables[Fallback] {
		for _, lang := range Languages() {
			_, ok := tables[lang][key]
			assert.True(t, ok, "%s missing %s", lang, key)
		}
	}
}
