package ledger

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quantfall/xrparb/internal/domain"
)

func TestEncodeAmount_NativeIsDrops(t *testing.T) {
	assert.Equal(t, "1500000", encodeAmount("XRP", "", 1.5))
	assert.Equal(t, "1", encodeAmount("XRP", "", 0.000001))
}

func TestEncodeAmount_IssuedIsObject(t *testing.T) {
	amt := encodeAmount("USD", "rB", 300.5)
	require.IsType(t, issuedAmount{}, amt)
	issued := amt.(issuedAmount)
	assert.Equal(t, "USD", issued.Currency)
	assert.Equal(t, "rB", issued.Issuer)
	assert.Equal(t, "300.5", issued.Value)
}

func TestDecodeAmount_Drops(t *testing.T) {
	currency, issuer, value, err := decodeAmount(json.RawMessage(`"2500000"`))
	require.NoError(t, err)
	assert.Equal(t, "XRP", currency)
	assert.Empty(t, issuer)
	assert.Equal(t, 2.5, value)
}

func TestDecodeAmount_Issued(t *testing.T) {
	raw := json.RawMessage(`{"currency":"EUR","issuer":"rG","value":"42.25"}`)
	currency, issuer, value, err := decodeAmount(raw)
	require.NoError(t, err)
	assert.Equal(t, "EUR", currency)
	assert.Equal(t, "rG", issuer)
	assert.Equal(t, 42.25, value)
}

func TestDecodeAmount_Malformed(t *testing.T) {
	_, _, _, err := decodeAmount(json.RawMessage(`"not-a-number"`))
	assert.Error(t, err)

	_, _, _, err = decodeAmount(nil)
	assert.Error(t, err)
}

func TestMakeCurrencySpec_NativeOmitsIssuer(t *testing.T) {
	spec := makeCurrencySpec("XRP", "rB")
	assert.Equal(t, currencySpec{Currency: "XRP"}, spec)

	spec = makeCurrencySpec("USD", "rB")
	assert.Equal(t, currencySpec{Currency: "USD", Issuer: "rB"}, spec)
}

func TestClassifyEngineResult(t *testing.T) {
	assert.NoError(t, classifyEngineResult("tesSUCCESS", ""))
	assert.NoError(t, classifyEngineResult("", ""))

	err := classifyEngineResult("tecUNFUNDED_PAYMENT", "insufficient balance")
	assert.True(t, domain.IsStructural(err))
	assert.ErrorIs(t, err, domain.ErrInsufficientFunds)

	for _, code := range []string{"tecPATH_DRY", "tecPATH_PARTIAL", "tecNO_LINE"} {
		err := classifyEngineResult(code, "")
		assert.True(t, domain.IsStructural(err), code)
		assert.ErrorIs(t, err, domain.ErrNoPath, code)
	}

	assert.True(t, domain.IsStructural(classifyEngineResult("temBAD_AMOUNT", "malformed")))
	assert.True(t, domain.IsStructural(classifyEngineResult("tefPAST_SEQ", "stale sequence")))

	assert.True(t, domain.IsTransient(classifyEngineResult("telINSUF_FEE_P", "fee")))
	assert.True(t, domain.IsTransient(classifyEngineResult("terQUEUED", "queued")))
	assert.True(t, domain.IsTransient(classifyEngineResult("whoKnows", "")))
}

func TestRPCStatusErr(t *testing.T) {
	assert.NoError(t, rpcStatus{Status: "success"}.err("submit"))
	assert.NoError(t, rpcStatus{}.err("submit"))

	err := rpcStatus{Status: "error", Error: "actNotFound", ErrorMessage: "Account not found."}.err("account_info")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "actNotFound")
	assert.Contains(t, err.Error(), "account_info")
}
