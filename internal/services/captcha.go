package services

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/Joello61/candi-tracker-api/internal/config"
	"github.com/Joello61/candi-tracker-api/internal/logger"
)

type CaptchaVerifier interface {
	// Verify reports whether token is a valid challenge response. Disabled verifiers accept everything.
	Verify(ctx context.Context, token, remoteIP string) (bool, error)
}

type captchaResponse struct {
	Success    bool     `json:"success"`
	Hostname   string   `json:"hostname"`
	ErrorCodes []string `json:"error-codes"`
}

type remoteCaptchaVerifier struct {
	cfg  config.CaptchaConfig
	http *http.Client
	log  logger.Logger
}

func NewCaptchaVerifier(cfg config.CaptchaConfig, log logger.Logger) CaptchaVerifier {
	return &remoteCaptchaVerifier{
		cfg:  cfg,
		http: &http.Client{Timeout: cfg.Timeout},
		log:  log,
	}
}

func (v *remoteCaptchaVerifier) Verify(ctx context.Context, token, remoteIP string) (bool, error) {
	if !v.cfg.Enabled {
		return true, nil
	}
	token = strings.TrimSpace(token)
	if token == "" {
		return false, nil
	}

	form := url.Values{
		"secret":   {v.cfg.Secret},
		"response": {token},
	}
	if remoteIP != "" {
		form.Set("remoteip", remoteIP)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, v.cfg.VerifyURL, strings.NewReader(form.Encode()))
	if err != nil {
		return false, fmt.Errorf("build captcha request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := v.http.Do(req)
	if err != nil {
		return false, fmt.Errorf("captcha request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return false, fmt.Errorf("captcha http status %d", resp.StatusCode)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<16))
	if err != nil {
		return false, fmt.Errorf("read captcha response: %w", err)
	}

	var out captchaResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return false, fmt.Errorf("parse captcha response: %w", err)
	}
	if !out.Success {
		v.log.Info("captcha rejected", map[string]interface{}{"error_codes": out.ErrorCodes})
	}
	return out.Success, nil
}
