package cardterminal

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/seu-repo/pdv-core/internal/domain"
	"github.com/seu-repo/pdv-core/internal/ports"
)

// Client implements the vendor REST protocol of the card terminal device.
// The device exposes initiate/status/cancel endpoints; payment progress is
// observed by polling status.
type Client struct {
	httpClient *http.Client
	log        *zap.Logger
}

func NewClient(log *zap.Logger) ports.CardTerminal {
	return &Client{
		httpClient: &http.Client{},
		log:        log,
	}
}

type initiateRequest struct {
	TerminalID  string            `json:"terminal_id"`
	AmountCents int64             `json:"amount_cents"`
	Currency    string            `json:"currency"`
	Metadata    map[string]string `json:"metadata,omitempty"`
}

type transactionResponse struct {
	TransactionID     string `json:"transaction_id"`
	AmountCents       int64  `json:"amount_cents"`
	Currency          string `json:"currency"`
	Status            string `json:"status"`
	ProcessorResponse string `json:"processor_response"`
}

func (r *transactionResponse) toDomain() *domain.TerminalTransaction {
	return &domain.TerminalTransaction{
		TransactionID:     r.TransactionID,
		AmountCents:       r.AmountCents,
		Currency:          r.Currency,
		Status:            domain.TerminalStatus(r.Status),
		ProcessorResponse: r.ProcessorResponse,
		CreatedAt:         time.Now(),
	}
}

func (c *Client) Initiate(ctx context.Context, cfg ports.TerminalConfig, amountCents int64, currency string, metadata map[string]string) (*domain.TerminalTransaction, error) {
	req := initiateRequest{
		TerminalID:  cfg.TerminalID,
		AmountCents: amountCents,
		Currency:    currency,
		Metadata:    metadata,
	}

	var resp transactionResponse
	if err := c.do(ctx, cfg, http.MethodPost, "/v1/transactions", req, &resp); err != nil {
		return nil, fmt.Errorf("terminal initiate failed: %w", err)
	}
	return resp.toDomain(), nil
}

func (c *Client) Status(ctx context.Context, cfg ports.TerminalConfig, transactionID string) (*domain.TerminalTransaction, error) {
	var resp transactionResponse
	path := "/v1/transactions/" + transactionID
	if err := c.do(ctx, cfg, http.MethodGet, path, nil, &resp); err != nil {
		return nil, fmt.Errorf("terminal status failed: %w", err)
	}
	return resp.toDomain(), nil
}

func (c *Client) Cancel(ctx context.Context, cfg ports.TerminalConfig, transactionID string) error {
	path := "/v1/transactions/" + transactionID + "/cancel"
	if err := c.do(ctx, cfg, http.MethodPost, path, nil, nil); err != nil {
		return fmt.Errorf("terminal cancel failed: %w", err)
	}
	return nil
}

func (c *Client) do(ctx context.Context, cfg ports.TerminalConfig, method, path string, body, out interface{}) error {
	timeout := cfg.RequestTimeout
	if timeout == 0 {
		timeout = 10 * time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var reqBody io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reqBody = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, cfg.BaseURL+path, reqBody)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Api-Key", cfg.APIKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return err
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("terminal returned %d: %s", resp.StatusCode, string(raw))
	}

	if out != nil {
		return json.Unmarshal(raw, out)
	}
	return nil
}
