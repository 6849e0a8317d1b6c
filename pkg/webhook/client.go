package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"math"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/kacperjurak/goloadflow/pkg/models"
)

// Client posts solve summaries to a webhook endpoint over pooled connections
type Client struct {
	url        string
	httpClient *http.Client
	quiet      bool
	bufferPool sync.Pool // JSON encoding buffers
}

// NewClient creates a new webhook client
func NewClient(url string, quiet bool) *Client {
	transport := &http.Transport{
		MaxIdleConns:        100,
		MaxIdleConnsPerHost: 20,
		IdleConnTimeout:     90 * time.Second,

		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,

		TLSHandshakeTimeout:   10 * time.Second,
		ResponseHeaderTimeout: 30 * time.Second,

		// payloads are small
		DisableCompression: true,
		ForceAttemptHTTP2:  false,
	}

	return &Client{
		url:   url,
		quiet: quiet,
		httpClient: &http.Client{
			Timeout:   45 * time.Second,
			Transport: transport,
		},
		bufferPool: sync.Pool{
			New: func() interface{} {
				return bytes.NewBuffer(make([]byte, 0, 2048))
			},
		},
	}
}

// URL returns the endpoint the client posts to.
func (c *Client) URL() string {
	return c.url
}

// Send posts the webhook payload built from item
func (c *Client) Send(ctx context.Context, item models.WebhookItem) error {
	payload := models.WebhookResponse{
		ID:                 item.RequestID,
		BatchID:            item.BatchID,
		Iteration:          item.Iteration,
		Time:               time.Now().Format(time.RFC3339Nano),
		Success:            item.Success,
		Error:              item.Error,
		Iterations:         item.Iterations,
		Buses:              item.Buses,
		Branches:           item.Branches,
		TotalLossP:         sanitizeFloat(item.TotalLossP),
		TotalLossQ:         sanitizeFloat(item.TotalLossQ),
		WeakestBus:         item.WeakestBus,
		WeakestVoltage:     sanitizeFloat(item.WeakestVoltage),
		SlackRealPower:     sanitizeFloat(item.SlackRealPower),
		SlackReactivePower: sanitizeFloat(item.SlackReactivePower),
		PVReactivePower:    sanitizeFloat(item.PVReactivePower),
	}

	buf := c.bufferPool.Get().(*bytes.Buffer)
	buf.Reset()
	defer c.bufferPool.Put(buf)

	if err := json.NewEncoder(buf).Encode(payload); err != nil {
		return fmt.Errorf("failed to marshal webhook data: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(buf.Bytes()))
	if err != nil {
		return fmt.Errorf("failed to build webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send webhook: %w", err)
	}
	defer resp.Body.Close()

	if !c.quiet {
		log.Printf("Webhook sent - ID: %s, Success: %v, Loss: %.3f MW, Status: %d",
			item.RequestID, item.Success, payload.TotalLossP, resp.StatusCode)
	}

	if resp.StatusCode >= 400 {
		return fmt.Errorf("webhook request failed with status %d", resp.StatusCode)
	}
	return nil
}

// sanitizeFloat cleans float64 values for JSON compatibility
func sanitizeFloat(value float64) float64 {
	if math.IsNaN(value) || math.IsInf(value, 0) {
		return 0.0
	}
	return value
}
