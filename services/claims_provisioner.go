package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"testrelay-portal/models"
	"testrelay-portal/utils/logger"

	"github.com/tidwall/gjson"
)

const maxProvisionResponseBytes = 1 << 20

// ProvisionError is a failure reported by the claims provisioner
type ProvisionError struct {
	HTTPStatus int
	Status     string
	Message    string
}

func (e *ProvisionError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("claims provisioning failed: %s (http %d)", e.Status, e.HTTPStatus)
	}
	return fmt.Sprintf("claims provisioning failed: %s: %s", e.Status, e.Message)
}

func (e *ProvisionError) Unwrap() error {
	return models.ErrProvisioning
}

// ClaimsProvisioner calls the remote function that writes role claims onto
// the caller's identity. Calls are not idempotent.
type ClaimsProvisioner struct {
	url    string
	client *http.Client
	logger logger.Logger
}

func NewClaimsProvisioner(url string, client *http.Client, log logger.Logger) *ClaimsProvisioner {
	if client == nil {
		client = &http.Client{Timeout: 15 * time.Second}
	}
	return &ClaimsProvisioner{
		url:    url,
		client: client,
		logger: log,
	}
}

// Provision asks the provisioner to attach claims for req.Role, and for
// req.BusinessID when set, to the identity the id token belongs to.
func (p *ClaimsProvisioner) Provision(ctx context.Context, idToken string, req models.ProvisionRequest) error {
	if p.url == "" {
		return fmt.Errorf("%w: provisioner url not configured", models.ErrProvisioning)
	}
	if idToken == "" {
		return fmt.Errorf("%w: id token is required", models.ErrProvisioning)
	}

	payload, err := json.Marshal(map[string]interface{}{"data": req})
	if err != nil {
		return fmt.Errorf("failed to marshal provision request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to create provision request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+idToken)

	resp, err := p.client.Do(httpReq)
	if err != nil {
		p.logger.Errorf("Claims provisioner unreachable: %v", err)
		return fmt.Errorf("%w: %v", models.ErrProvisioning, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxProvisionResponseBytes))
	if err != nil {
		return fmt.Errorf("%w: failed to read response: %v", models.ErrProvisioning, err)
	}

	if perr := parseProvisionError(resp.StatusCode, body); perr != nil {
		p.logger.WithFields(map[string]interface{}{
			"role":        req.Role,
			"http_status": resp.StatusCode,
			"status":      perr.Status,
		}).Warnf("Claims provisioning rejected: %s", perr.Message)
		return perr
	}

	p.logger.Infof("Claims provisioned for role %s", req.Role)
	return nil
}

func parseProvisionError(code int, body []byte) *ProvisionError {
	if gjson.ValidBytes(body) {
		if e := gjson.GetBytes(body, "error"); e.Exists() {
			status := e.Get("status").String()
			if status == "" {
				status = http.StatusText(code)
			}
			return &ProvisionError{
				HTTPStatus: code,
				Status:     status,
				Message:    e.Get("message").String(),
			}
		}
	}
	if code < 200 || code >= 300 {
		return &ProvisionError{
			HTTPStatus: code,
			Status:     http.StatusText(code),
		}
	}
	return nil
}

// IsProvisionError reports whether err came back from the provisioner itself.
func IsProvisionError(err error) bool {
	var perr *ProvisionError
	return errors.As(err, &perr)
}
