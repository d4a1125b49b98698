package news

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFilterForSymbols(t *testing.T) {
	headlines := []Headline{
		{ID: 1, Title: "Сбербанк отчитался о рекордной прибыли"},
		{ID: 2, Title: "Газпром снизил добычу"},
		{ID: 3, Title: "Индекс Мосбиржи вырос на 1%"},
		{ID: 4, Title: "Яндекс представил новые сервисы"},
		{ID: 5, Title: "Акции SBER выросли после отчёта"},
	}

	got := FilterForSymbols(headlines, []string{"SBER", "GAZP", "LKOH"})

	// SBER matches both the company name and the raw ticker.
	assert.Len(t, got["SBER"], 2)
	assert.Len(t, got["GAZP"], 1)
	assert.Empty(t, got["LKOH"])
	// Symbols outside the watchlist are not grouped.
	assert.NotContains(t, got, "YDEX")
}

func TestFilterForSymbolsCaseInsensitive(t *testing.T) {
	headlines := []Headline{
		{ID: 1, Title: "ЛУКОЙЛ увеличил дивиденды"},
		{ID: 2, Title: "Лукойл расширяет переработку"},
	}

	got := FilterForSymbols(headlines, []string{"LKOH"})
	assert.Len(t, got["LKOH"], 2)
}

func TestToFloat64(t *testing.T) {
	assert.Equal(t, 5.0, toFloat64(5.0))
	assert.Equal(t, 5.0, toFloat64(5))
	assert.Equal(t, 5.0, toFloat64(int64(5)))
	assert.Zero(t, toFloat64("5"))
}
