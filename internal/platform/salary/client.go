package salary

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"payrolld/internal/domain/cutoff"
	"payrolld/internal/platform/config"
)

type noopComputer struct{}

func (noopComputer) ComputeSalary(ctx context.Context, tenantID, employeePeriodLinkID string) error {
	return nil
}

// Client calls the external salary computation service over HTTP. The
// service owns all payroll math; this side only triggers and waits.
type Client struct {
	baseURL string
	http    *http.Client
}

func New(cfg config.Config) cutoff.SalaryComputer {
	if cfg.SalaryComputeURL == "" {
		return noopComputer{}
	}
	return &Client{
		baseURL: cfg.SalaryComputeURL,
		http:    &http.Client{Timeout: 60 * time.Second},
	}
}

func (c *Client) ComputeSalary(ctx context.Context, tenantID, employeePeriodLinkID string) error {
	payload, err := json.Marshal(map[string]string{
		"tenantId":             tenantID,
		"employeePeriodLinkId": employeePeriodLinkID,
	})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/compute", bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("salary compute returned %d: %s", resp.StatusCode, body)
	}
	return nil
}
