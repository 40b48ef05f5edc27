package remote

import (
	"context"
	"fmt"
	"net/http"

	"github.com/seu-repo/pdv-core/internal/domain"
	"github.com/seu-repo/pdv-core/internal/ports"
)

// OrderClient talks to the remote order service. Submissions are keyed by
// the local ticket id, so a retry of an already-accepted ticket returns
// the existing remote id instead of creating a duplicate.
type OrderClient struct {
	*Client
}

func NewOrderClient(c *Client) ports.OrderService {
	return &OrderClient{Client: c}
}

type ticketRequest struct {
	LocalID       string                 `json:"local_id"`
	LocationID    string                 `json:"location_id"`
	BusinessDate  string                 `json:"business_date"`
	TokenNumber   int                    `json:"token_number"`
	Items         []domain.TicketItem    `json:"items"`
	Charges       []domain.AppliedCharge `json:"charges,omitempty"`
	SubtotalCents int64                  `json:"subtotal_cents"`
	TotalCents    int64                  `json:"total_cents"`
	PaymentMethod string                 `json:"payment_method"`
	TenderedCents int64                  `json:"tendered_cents"`
	ChangeCents   int64                  `json:"change_cents"`
}

type ticketResponse struct {
	TicketID string `json:"ticketId"`
	Offline  bool   `json:"offline"`
}

func (c *OrderClient) CreateTicket(ctx context.Context, creds ports.Credentials, t *domain.Ticket) (*ports.CreateTicketResult, error) {
	req := ticketRequest{
		LocalID:       t.ID,
		LocationID:    t.LocationID,
		BusinessDate:  t.BusinessDate,
		TokenNumber:   t.TokenNumber,
		Items:         t.Items,
		Charges:       t.Charges,
		SubtotalCents: t.SubtotalCents,
		TotalCents:    t.TotalCents,
		PaymentMethod: t.PaymentMethod,
		TenderedCents: t.TenderedCents,
		ChangeCents:   t.ChangeCents,
	}

	var resp ticketResponse
	url := fmt.Sprintf("https://%s/api/v1/tickets", creds.Domain)
	if err := c.doJSON(ctx, http.MethodPost, url, creds.Token, req, &resp); err != nil {
		return nil, err
	}
	return &ports.CreateTicketResult{TicketID: resp.TicketID, Offline: resp.Offline}, nil
}

type receiptRequest struct {
	Recipient string          `json:"recipient"`
	Tickets   []ticketRequest `json:"tickets"`
}

func (c *OrderClient) SendReceipt(ctx context.Context, creds ports.Credentials, recipient string, tickets []domain.Ticket) error {
	req := receiptRequest{Recipient: recipient}
	for i := range tickets {
		t := &tickets[i]
		req.Tickets = append(req.Tickets, ticketRequest{
			LocalID:       t.ID,
			LocationID:    t.LocationID,
			BusinessDate:  t.BusinessDate,
			TokenNumber:   t.TokenNumber,
			Items:         t.Items,
			Charges:       t.Charges,
			SubtotalCents: t.SubtotalCents,
			TotalCents:    t.TotalCents,
			PaymentMethod: t.PaymentMethod,
			TenderedCents: t.TenderedCents,
			ChangeCents:   t.ChangeCents,
		})
	}

	url := fmt.Sprintf("https://%s/api/v1/receipts", creds.Domain)
	return c.doJSON(ctx, http.MethodPost, url, creds.Token, req, nil)
}
