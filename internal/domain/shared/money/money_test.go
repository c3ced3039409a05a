package money

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_Validates(t *testing.T) {
	m, err := New(1500, "usd")
	require.NoError(t, err)
	assert.Equal(t, "USD", m.Currency)

	_, err = New(10, "US")
	assert.ErrorIs(t, err, ErrInvalidCurrency)

	_, err = New(-1, "USD")
	assert.ErrorIs(t, err, ErrNegativeAmount)
}

func TestAdd_CurrencyMismatch(t *testing.T) {
	_, err := Must(100, "USD").Add(Must(100, "EUR"))
	assert.ErrorIs(t, err, ErrCurrencyMismatch)

	sum, err := Must(100, "USD").Add(Must(250, "USD"))
	require.NoError(t, err)
	assert.Equal(t, int64(350), sum.Amount)
}

func TestString(t *testing.T) {
	assert.Equal(t, "100.05 USD", Must(10005, "USD").String())
}
