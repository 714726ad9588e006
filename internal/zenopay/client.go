package zenopay

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/zenobundle/zenobundle-gobackend/internal/logging"
	"github.com/zenobundle/zenobundle-gobackend/internal/status"
)

const (
	pollAttempts   = 3
	attemptTimeout = 10 * time.Second
)

// Client talks to the ZenoPay mobile-money API. Auth is a static api key
// sent on every request.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

func NewClient(baseURL, apiKey string) *Client {
	return &Client{
		baseURL:    baseURL,
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: attemptTimeout},
	}
}

// OrderRequest is the outbound order-submission body.
type OrderRequest struct {
	OrderID    string `json:"order_id"`
	BuyerName  string `json:"buyer_name"`
	BuyerPhone string `json:"buyer_phone"`
	BuyerEmail string `json:"buyer_email"`
	Amount     int64  `json:"amount"`
}

type orderResponse struct {
	Status     string `json:"status"`
	ResultCode string `json:"resultcode"`
	Message    string `json:"message"`
	OrderID    string `json:"order_id"`
}

// Snapshot is a normalized view of one order-status query. A Snapshot is
// always produced, even when the vendor is unreachable; Error carries the
// last transport failure in that case.
type Snapshot struct {
	OrderID          string
	Status           status.Status
	RawStatus        string
	TransactionRef   string
	ConfirmationCode string
	PaymentMethod    string
	Channel          string
	Error            string
}

type statusEnvelope struct {
	Result  string `json:"result"`
	Message string `json:"message"`
	Data    []struct {
		OrderID       string `json:"order_id"`
		PaymentStatus string `json:"payment_status"`
		TransID       string `json:"transid"`
		Channel       string `json:"channel"`
		Reference     string `json:"reference"`
		Msisdn        string `json:"msisdn"`
	} `json:"data"`
}

// SubmitOrder pushes a payment order to the gateway. Transport failures are
// retried up to 3 times; a delivered HTTP response ends the loop. A non-2xx
// or non-zero result code is a gateway rejection, returned as an error.
func (c *Client) SubmitOrder(ctx context.Context, order OrderRequest) error {
	reqBody, err := json.Marshal(order)
	if err != nil {
		return fmt.Errorf("failed to marshal order request: %w", err)
	}

	var resp *http.Response
	for retries := pollAttempts; retries > 0; retries-- {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/mobile_money_tanzania", bytes.NewBuffer(reqBody))
		if err != nil {
			return fmt.Errorf("failed to create order request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("x-api-key", c.apiKey)

		resp, err = c.httpClient.Do(req)
		if err == nil {
			break
		}
		logging.Logger.Errorf("Order submission failed (attempt %d): %v", pollAttempts+1-retries, err)
		if retries == 1 {
			return fmt.Errorf("order submission failed after retries: %w", err)
		}
		time.Sleep(time.Second * time.Duration(pollAttempts-retries+1))
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("order rejected with status %d: %s", resp.StatusCode, string(body))
	}

	var or orderResponse
	if err := json.NewDecoder(resp.Body).Decode(&or); err != nil {
		return fmt.Errorf("failed to decode order response: %w", err)
	}
	if or.ResultCode != "" && or.ResultCode != "000" {
		return fmt.Errorf("order rejected by gateway: code=%s message=%s", or.ResultCode, or.Message)
	}

	logging.Logger.Infof("Order submitted: order_id=%s message=%s", order.OrderID, or.Message)
	return nil
}

// CheckOrderStatus queries the gateway for the current state of an order.
// Up to 3 attempts, each with its own timeout; only transport failures are
// retried. Exhaustion yields an UNKNOWN snapshot carrying the last transport
// error — the caller never sees a hard failure from here.
func (c *Client) CheckOrderStatus(ctx context.Context, orderID string) (*Snapshot, error) {
	var lastErr error
	for attempt := 1; attempt <= pollAttempts; attempt++ {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/order-status?order_id="+orderID, nil)
		if err != nil {
			return nil, fmt.Errorf("failed to create status request: %w", err)
		}
		req.Header.Set("x-api-key", c.apiKey)

		resp, err := c.httpClient.Do(req)
		if err != nil {
			lastErr = err
			logging.Logger.Errorf("Status poll failed for order %s (attempt %d): %v", orderID, attempt, err)
			continue
		}

		// Any delivered response ends the retry loop, even a vendor-side
		// rejection; business failures are data, not transport faults.
		snap := c.decodeSnapshot(orderID, resp)
		return snap, nil
	}

	return &Snapshot{
		OrderID: orderID,
		Status:  status.Unknown,
		Error:   transportErrorString(lastErr),
	}, nil
}

func (c *Client) decodeSnapshot(orderID string, resp *http.Response) *Snapshot {
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(resp.Body)
		return &Snapshot{
			OrderID: orderID,
			Status:  status.Unknown,
			Error:   fmt.Sprintf("gateway returned status %d: %s", resp.StatusCode, string(body)),
		}
	}

	var env statusEnvelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return &Snapshot{
			OrderID: orderID,
			Status:  status.Unknown,
			Error:   fmt.Sprintf("failed to decode status response: %v", err),
		}
	}
	if len(env.Data) == 0 {
		return &Snapshot{
			OrderID: orderID,
			Status:  status.Unknown,
			Error:   "gateway returned no data for order",
		}
	}

	item := env.Data[0]
	return &Snapshot{
		OrderID:          orderID,
		Status:           status.Normalize(item.PaymentStatus, env.Result),
		RawStatus:        item.PaymentStatus,
		TransactionRef:   item.TransID,
		ConfirmationCode: item.Reference,
		PaymentMethod:    "MOBILE_MONEY",
		Channel:          item.Channel,
	}
}

func transportErrorString(err error) string {
	if err == nil {
		return "Timeout"
	}
	var netErr interface{ Timeout() bool }
	if errors.As(err, &netErr) && netErr.Timeout() {
		return "Timeout"
	}
	return err.Error()
}
