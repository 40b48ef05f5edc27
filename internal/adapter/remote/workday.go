package remote

import (
	"context"
	"fmt"
	"net/http"

	"github.com/seu-repo/pdv-core/internal/domain"
	"github.com/seu-repo/pdv-core/internal/ports"
)

// WorkdayClient talks to the remote workday service.
type WorkdayClient struct {
	*Client
}

func NewWorkdayClient(c *Client) ports.WorkdayService {
	return &WorkdayClient{Client: c}
}

type workdayRequest struct {
	LocalID      string `json:"local_id"`
	LocationID   string `json:"location_id"`
	BusinessDate string `json:"business_date"`
	OpenedBy     string `json:"opened_by"`
	OpenedAt     string `json:"opened_at"`
}

type workdayResponse struct {
	WorkdayID string `json:"workday_id"`
}

func (c *WorkdayClient) SyncWorkday(ctx context.Context, creds ports.Credentials, w *domain.Workday) (string, error) {
	req := workdayRequest{
		LocalID:      w.ID,
		LocationID:   w.LocationID,
		BusinessDate: w.BusinessDate,
		OpenedBy:     w.OpenedBy,
		OpenedAt:     w.OpenedAt.Format("2006-01-02T15:04:05Z07:00"),
	}

	var resp workdayResponse
	url := fmt.Sprintf("https://%s/api/v1/workdays", creds.Domain)
	if err := c.doJSON(ctx, http.MethodPost, url, creds.Token, req, &resp); err != nil {
		return "", err
	}
	return resp.WorkdayID, nil
}

type endWorkdayRequest struct {
	LocationID  string `json:"location_id"`
	User        string `json:"user"`
	GrossCents  int64  `json:"gross_cents"`
	TicketCount int64  `json:"ticket_count"`
}

func (c *WorkdayClient) EndWorkday(ctx context.Context, creds ports.Credentials, w *domain.Workday) error {
	id := w.RemoteID
	if id == "" {
		id = w.ID
	}
	req := endWorkdayRequest{
		LocationID:  w.LocationID,
		User:        w.OpenedBy,
		GrossCents:  w.GrossCents,
		TicketCount: w.TicketCount,
	}

	url := fmt.Sprintf("https://%s/api/v1/workdays/%s/close", creds.Domain, id)
	return c.doJSON(ctx, http.MethodPut, url, creds.Token, req, nil)
}
