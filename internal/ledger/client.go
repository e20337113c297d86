// Package ledger implements the JSON-RPC and WebSocket gateway to the
// decentralized exchange ledger. It is the only package that speaks the
// ledger's wire formats; everything above it works with domain types.
package ledger

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/quantfall/xrparb/internal/domain"
)

const (
	// partialPaymentFlag marks a payment as deliverable below the full
	// Amount; arbitrage payments never set it, but the constant documents
	// the flag word layout.
	partialPaymentFlag uint32 = 0x00020000

	// defaultBookDepth bounds how many resting offers a book request pulls.
	defaultBookDepth = 20

	// validationPollInterval is how often AwaitValidation re-queries a
	// transaction when no stream notification has arrived.
	validationPollInterval = time.Second
)

// Client is the JSON-RPC client for the ledger's HTTP API. It implements
// domain.LedgerGateway. All requests pass through a shared rate limiter so
// a hot polling loop cannot starve the public endpoint.
type Client struct {
	rpcURL     string
	account    string
	secret     string
	httpClient *http.Client
	limiter    *rate.Limiter
	stream     *TxStream // optional fast path for validation, may be nil
}

// Options configures a Client.
type Options struct {
	RPCURL         string
	Account        string
	Secret         string
	RequestTimeout time.Duration
	RateLimitRPS   float64
	RateLimitBurst int
}

// NewClient creates a ledger JSON-RPC client.
func NewClient(opts Options) *Client {
	timeout := opts.RequestTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	rps := opts.RateLimitRPS
	if rps <= 0 {
		rps = 20
	}
	burst := opts.RateLimitBurst
	if burst <= 0 {
		burst = int(rps)
	}

	return &Client{
		rpcURL:     opts.RPCURL,
		account:    opts.Account,
		secret:     opts.Secret,
		httpClient: &http.Client{Timeout: timeout},
		limiter:    rate.NewLimiter(rate.Limit(rps), burst),
	}
}

// SetStream attaches a validated-transaction stream. When present,
// AwaitValidation resolves from stream notifications instead of polling.
func (c *Client) SetStream(s *TxStream) {
	c.stream = s
}

// GetOrderBook returns the best offers selling base for quote at the given
// issuer, sorted best rate first. Rate is quote paid per unit of base;
// Size is the base amount available at that rate.
func (c *Client) GetOrderBook(ctx context.Context, base, quote, issuer string) ([]domain.BookOffer, error) {
	params := bookOffersParams{
		TakerGets: makeCurrencySpec(base, issuer),
		TakerPays: makeCurrencySpec(quote, issuer),
		Limit:     defaultBookDepth,
	}

	var res bookOffersResult
	if err := c.call(ctx, "book_offers", params, &res); err != nil {
		return nil, fmt.Errorf("ledger: book %s/%s: %w", base, quote, err)
	}

	offers := make([]domain.BookOffer, 0, len(res.Offers))
	for _, o := range res.Offers {
		_, _, gets, err := decodeAmount(o.TakerGets)
		if err != nil {
			continue // skip malformed entries rather than failing the book
		}
		_, _, pays, err := decodeAmount(o.TakerPays)
		if err != nil || gets <= 0 {
			continue
		}

		r := pays / gets
		if q, err := strconv.ParseFloat(o.Quality, 64); err == nil && q > 0 {
			r = q
		}

		offers = append(offers, domain.BookOffer{Rate: r, Size: gets})
	}

	sort.Slice(offers, func(i, j int) bool { return offers[i].Rate < offers[j].Rate })
	return offers, nil
}

// FindPaths runs the ledger's path-finding engine for a delivery of
// destAmount of the given currency to destination. An empty alternatives
// list means no route exists at current liquidity; that is returned as an
// empty slice, not an error.
func (c *Client) FindPaths(ctx context.Context, destination, currency, issuer string, destAmount float64) ([]domain.PathAlternative, error) {
	params := pathFindParams{
		SourceAccount:      c.account,
		DestinationAccount: destination,
		DestinationAmount:  encodeAmount(currency, issuer, destAmount),
	}

	var res pathFindResult
	if err := c.call(ctx, "ripple_path_find", params, &res); err != nil {
		return nil, fmt.Errorf("ledger: find paths to %s: %w", destination, err)
	}

	alts := make([]domain.PathAlternative, 0, len(res.Alternatives))
	for _, a := range res.Alternatives {
		_, _, src, err := decodeAmount(a.SourceAmount)
		if err != nil {
			continue
		}
		alts = append(alts, domain.PathAlternative{
			SourceAmount: src,
			Path:         append([]byte(nil), a.PathsComputed...),
		})
	}

	// Cheapest source amount first.
	sort.Slice(alts, func(i, j int) bool { return alts[i].SourceAmount < alts[j].SourceAmount })
	return alts, nil
}

// SubmitPayment signs and submits a payment through the server-side
// sign-and-submit endpoint. Engine rejections are classified so the
// executor can decide between retrying and aborting.
func (c *Client) SubmitPayment(ctx context.Context, req domain.PaymentRequest) (domain.SubmitResult, error) {
	tx := paymentTx{
		TransactionType: "Payment",
		Account:         c.account,
		Destination:     req.Destination,
		Amount:          encodeAmount(req.Currency, req.Issuer, req.Amount),
	}
	if req.SendMax > 0 {
		tx.SendMax = encodeAmount(req.SendMaxCurrency, req.SendMaxIssuer, req.SendMax)
	}
	if len(req.Paths) > 0 {
		tx.Paths = req.Paths
	}

	params := submitParams{TxJSON: tx, Secret: c.secret}

	var res submitResult
	if err := c.call(ctx, "submit", params, &res); err != nil {
		return domain.SubmitResult{}, domain.Transient(fmt.Errorf("ledger: submit payment: %w", err))
	}

	out := domain.SubmitResult{Hash: res.TxJSON.Hash}

	if err := classifyEngineResult(res.EngineResult, res.EngineResultMessage); err != nil {
		return out, err
	}
	return out, nil
}

// AwaitValidation blocks until the transaction is included in a validated
// ledger or the timeout elapses. With a stream attached the wait resolves
// on the validated-transaction push; it always confirms (or falls back to)
// the tx query, since stream delivery is best-effort.
func (c *Client) AwaitValidation(ctx context.Context, hash string, timeout time.Duration) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var notify <-chan struct{}
	if c.stream != nil {
		ch, release := c.stream.Watch(hash)
		defer release()
		notify = ch
	}

	ticker := time.NewTicker(validationPollInterval)
	defer ticker.Stop()

	for {
		validated, err := c.txValidated(ctx, hash)
		if err == nil && validated {
			return true, nil
		}

		select {
		case <-ctx.Done():
			return false, fmt.Errorf("ledger: await validation of %s: %w", hash, ctx.Err())
		case <-notify:
			// Stream saw the hash in a validated ledger; confirm on the
			// next loop iteration.
		case <-ticker.C:
		}
	}
}

// GetAccountInfo returns the account's native balance and current sequence
// from the last validated ledger.
func (c *Client) GetAccountInfo(ctx context.Context, address string) (domain.AccountState, error) {
	params := accountInfoParams{Account: address, LedgerIndex: "validated"}

	var res accountInfoResult
	if err := c.call(ctx, "account_info", params, &res); err != nil {
		if strings.Contains(err.Error(), "actNotFound") {
			return domain.AccountState{}, fmt.Errorf("ledger: account %s: %w", address, domain.ErrNotFound)
		}
		return domain.AccountState{}, fmt.Errorf("ledger: account info %s: %w", address, err)
	}

	drops, err := strconv.ParseInt(res.AccountData.Balance, 10, 64)
	if err != nil {
		return domain.AccountState{}, fmt.Errorf("ledger: parse balance %q: %w", res.AccountData.Balance, err)
	}

	return domain.AccountState{
		Balance:  float64(drops) / dropsPerXRP,
		Sequence: res.AccountData.Sequence,
	}, nil
}

// --------------------------------------------------------------------------
// Internal helpers
// --------------------------------------------------------------------------

// txValidated queries a transaction by hash and reports whether it has been
// included in a validated ledger with a successful result.
func (c *Client) txValidated(ctx context.Context, hash string) (bool, error) {
	var res txResult
	if err := c.call(ctx, "tx", txParams{Transaction: hash}, &res); err != nil {
		return false, err
	}
	if !res.Validated {
		return false, nil
	}
	if res.Meta.TransactionResult != "" && res.Meta.TransactionResult != "tesSUCCESS" {
		return false, domain.Structural(fmt.Errorf("ledger: tx %s validated with result %s", hash, res.Meta.TransactionResult))
	}
	return true, nil
}

// call performs one rate-limited JSON-RPC request and decodes the result
// into out, surfacing ledger-level error fields as Go errors.
func (c *Client) call(ctx context.Context, method string, params, out any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limit: %w", err)
	}

	payload, err := json.Marshal(rpcRequest{Method: method, Params: []any{params}})
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.rpcURL, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("HTTP %d: %s", resp.StatusCode, truncate(body, 200))
	}

	var envelope rpcEnvelope
	if err := json.Unmarshal(body, &envelope); err != nil {
		return fmt.Errorf("decode envelope: %w", err)
	}
	if err := json.Unmarshal(envelope.Result, out); err != nil {
		return fmt.Errorf("decode %s result: %w", method, err)
	}

	if s, ok := out.(interface{ err(string) error }); ok {
		return s.err(method)
	}
	return nil
}

// classifyEngineResult maps a submission engine result to nil, a transient
// error (worth retrying with a fresh path), or a structural one (the
// opportunity is gone or the account cannot fund it).
func classifyEngineResult(code, message string) error {
	switch {
	case code == "" || code == "tesSUCCESS":
		return nil
	case code == "tecUNFUNDED_PAYMENT" || code == "tecUNFUNDED":
		return domain.Structural(fmt.Errorf("ledger: %s: %s: %w", code, message, domain.ErrInsufficientFunds))
	case code == "tecPATH_DRY" || code == "tecPATH_PARTIAL" || code == "tecNO_LINE":
		return domain.Structural(fmt.Errorf("ledger: %s: %s: %w", code, message, domain.ErrNoPath))
	case strings.HasPrefix(code, "tef") || strings.HasPrefix(code, "tem"):
		// Malformed or permanently failed; retrying the same payment cannot help.
		return domain.Structural(fmt.Errorf("ledger: submit rejected: %s: %s", code, message))
	default:
		// tel/ter class and unknown codes: local or retriable conditions.
		return domain.Transient(fmt.Errorf("ledger: submit deferred: %s: %s", code, message))
	}
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
