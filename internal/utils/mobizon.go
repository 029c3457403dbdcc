package utils

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// MobizonClient talks to the Mobizon HTTP form API.
type MobizonClient struct {
	APIKey  string
	Sender  string
	DryRun  bool
	BaseURL string
	HTTP    *http.Client
}

type SendSMSResponse struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    struct {
		MessageID string `json:"messageId"`
	} `json:"data"`
}

func NewMobizonClient(apiKey, sender, baseURL string, dryRun bool) *MobizonClient {
	if baseURL == "" {
		baseURL = "https://api.mobizon.kz"
	}
	return &MobizonClient{
		APIKey:  apiKey,
		Sender:  sender,
		DryRun:  dryRun,
		BaseURL: strings.TrimRight(baseURL, "/"),
		HTTP:    &http.Client{Timeout: 15 * time.Second},
	}
}

// Configured reports whether real requests will be made.
func (c *MobizonClient) Configured() bool {
	return !c.DryRun && c.APIKey != "" && c.APIKey != "dry-run"
}

// SendSMS posts one message. In dry-run mode nothing is sent and an empty response is returned.
func (c *MobizonClient) SendSMS(ctx context.Context, to, text string) (*SendSMSResponse, error) {
	if !c.Configured() {
		return &SendSMSResponse{Code: 0}, nil
	}

	form := url.Values{
		"apiKey":    {c.APIKey},
		"recipient": {to},
		"text":      {text},
	}
	if c.Sender != "" {
		form.Set("from", c.Sender)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.BaseURL+"/service/message/sendsmsmessage", strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("build sms request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return nil, fmt.Errorf("send sms request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("read sms response: %w", err)
	}
	if resp.StatusCode >= http.StatusBadRequest {
		return nil, fmt.Errorf("mobizon http status %d", resp.StatusCode)
	}

	var result SendSMSResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("parse response: %w", err)
	}
	if result.Code != 0 {
		return nil, fmt.Errorf("mobizon returned error code %d: %s", result.Code, result.Message)
	}
	return &result, nil
}
