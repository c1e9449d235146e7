package apiclient

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/AnandSundar/go-fincache/locale"
)

func TestTransactionTypesAreTranslated(t *testing.T) {
	for _, lang := range locale.Languages() {
		for _, typ := range []string{Income, Expense, Transfer} {
			key := "tx." + typ
			assert.NotEqual(t, key, locale.T(lang, key), "%s %s", lang, typ)
		}
	}
	assert.Equal(t, "Расход", locale.T("ru", "tx."+Expense))
}

func TestTransactionFilterQuery(t *testing.T) {
	f := TransactionFilter{From: "2025-01-01", To: "2025-01-31", CategoryID: 4, Offset: 20}

	assert.Equal(t, "category_id=4&date_from=2025-01-01&date_to=2025-01-31&offset=20", f.query().Encode())
	assert.Empty(t, TransactionFilter{}.query())
}
