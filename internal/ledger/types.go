package ledger

import (
	"encoding/json"
	"fmt"
	"strconv"
)

// dropsPerXRP converts between the native currency and its integer
// on-ledger representation.
const dropsPerXRP = 1_000_000

// rpcRequest is the JSON-RPC envelope the ledger's HTTP API expects:
// a method name and a single-element params array.
type rpcRequest struct {
	Method string `json:"method"`
	Params []any  `json:"params"`
}

// rpcEnvelope wraps every JSON-RPC response.
type rpcEnvelope struct {
	Result json.RawMessage `json:"result"`
}

// rpcStatus is the common status fields embedded in every result object.
type rpcStatus struct {
	Status       string `json:"status"`
	Error        string `json:"error"`
	ErrorMessage string `json:"error_message"`
}

func (s rpcStatus) err(method string) error {
	if s.Status == "success" || s.Error == "" {
		return nil
	}
	if s.ErrorMessage != "" {
		return fmt.Errorf("%s: %s: %s", method, s.Error, s.ErrorMessage)
	}
	return fmt.Errorf("%s: %s", method, s.Error)
}

// issuedAmount is the object form of a ledger amount: an issued currency
// with an issuer and a decimal string value. The native currency travels as
// a bare drops string instead.
type issuedAmount struct {
	Currency string `json:"currency"`
	Issuer   string `json:"issuer,omitempty"`
	Value    string `json:"value"`
}

// encodeAmount renders a currency amount in the ledger's wire form: a drops
// string for the native currency, an issuedAmount object otherwise.
func encodeAmount(currency, issuer string, value float64) any {
	if currency == "XRP" {
		return strconv.FormatInt(int64(value*dropsPerXRP), 10)
	}
	return issuedAmount{
		Currency: currency,
		Issuer:   issuer,
		Value:    strconv.FormatFloat(value, 'f', -1, 64),
	}
}

// decodeAmount parses either wire form back into a float value plus its
// currency and issuer.
func decodeAmount(raw json.RawMessage) (currency, issuer string, value float64, err error) {
	if len(raw) == 0 {
		return "", "", 0, fmt.Errorf("empty amount")
	}

	// Native amounts are JSON strings holding integer drops.
	if raw[0] == '"' {
		var drops string
		if err := json.Unmarshal(raw, &drops); err != nil {
			return "", "", 0, fmt.Errorf("decode drops: %w", err)
		}
		n, err := strconv.ParseInt(drops, 10, 64)
		if err != nil {
			return "", "", 0, fmt.Errorf("parse drops %q: %w", drops, err)
		}
		return "XRP", "", float64(n) / dropsPerXRP, nil
	}

	var amt issuedAmount
	if err := json.Unmarshal(raw, &amt); err != nil {
		return "", "", 0, fmt.Errorf("decode issued amount: %w", err)
	}
	v, err := strconv.ParseFloat(amt.Value, 64)
	if err != nil {
		return "", "", 0, fmt.Errorf("parse amount value %q: %w", amt.Value, err)
	}
	return amt.Currency, amt.Issuer, v, nil
}

// currencySpec identifies a currency (and issuer, for issued assets) in
// book and path-find requests.
type currencySpec struct {
	Currency string `json:"currency"`
	Issuer   string `json:"issuer,omitempty"`
}

func makeCurrencySpec(currency, issuer string) currencySpec {
	if currency == "XRP" {
		return currencySpec{Currency: "XRP"}
	}
	return currencySpec{Currency: currency, Issuer: issuer}
}

// ── book_offers ──

type bookOffersParams struct {
	TakerGets currencySpec `json:"taker_gets"`
	TakerPays currencySpec `json:"taker_pays"`
	Limit     int          `json:"limit,omitempty"`
}

type bookOffersResult struct {
	rpcStatus
	Offers []offerEntry `json:"offers"`
}

type offerEntry struct {
	TakerGets json.RawMessage `json:"TakerGets"`
	TakerPays json.RawMessage `json:"TakerPays"`
	Quality   string          `json:"quality"`
}

// ── ripple_path_find ──

type pathFindParams struct {
	SourceAccount      string          `json:"source_account"`
	DestinationAccount string          `json:"destination_account"`
	DestinationAmount  any             `json:"destination_amount"`
	SourceCurrencies   []currencySpec  `json:"source_currencies,omitempty"`
}

type pathFindResult struct {
	rpcStatus
	Alternatives []pathAlternative `json:"alternatives"`
}

type pathAlternative struct {
	SourceAmount  json.RawMessage `json:"source_amount"`
	PathsComputed json.RawMessage `json:"paths_computed"`
}

// ── submit ──

// paymentTx is the unsigned payment transaction handed to the server-side
// sign-and-submit endpoint together with the wallet secret.
type paymentTx struct {
	TransactionType string          `json:"TransactionType"`
	Account         string          `json:"Account"`
	Destination     string          `json:"Destination"`
	Amount          any             `json:"Amount"`
	SendMax         any             `json:"SendMax,omitempty"`
	Paths           json.RawMessage `json:"Paths,omitempty"`
	Flags           uint32          `json:"Flags,omitempty"`
}

type submitParams struct {
	TxJSON paymentTx `json:"tx_json"`
	Secret string    `json:"secret"`
}

type submitResult struct {
	rpcStatus
	EngineResult        string `json:"engine_result"`
	EngineResultMessage string `json:"engine_result_message"`
	TxJSON              struct {
		Hash string `json:"hash"`
	} `json:"tx_json"`
}

// ── account_info ──

type accountInfoParams struct {
	Account     string `json:"account"`
	LedgerIndex string `json:"ledger_index,omitempty"`
}

type accountInfoResult struct {
	rpcStatus
	AccountData struct {
		Balance  string `json:"Balance"`
		Sequence uint32 `json:"Sequence"`
	} `json:"account_data"`
}

// ── tx ──

type txParams struct {
	Transaction string `json:"transaction"`
}

type txResult struct {
	rpcStatus
	Validated bool `json:"validated"`
	Meta      struct {
		TransactionResult string `json:"TransactionResult"`
	} `json:"meta"`
}
