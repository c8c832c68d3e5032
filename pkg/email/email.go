// Package email sends task assignment emails through a hosted template
// relay provider.
package email

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// ErrTimeout reports that the relay provider did not answer in time. The
// message may or may not have been sent.
var ErrTimeout = errors.New("email relay timed out")

// RejectionError reports that the provider answered and refused the send.
type RejectionError struct {
	StatusCode int
	Body       string
}

func (e *RejectionError) Error() string {
	return fmt.Sprintf("email relay rejected send: status %d: %s", e.StatusCode, e.Body)
}

// Params carries the template fields for one task assignment email.
type Params struct {
	ToEmail         string `json:"to_email"`
	ToName          string `json:"to_name"`
	StaffName       string `json:"staff_name"`
	TaskTitle       string `json:"task_title"`
	TaskDescription string `json:"task_description"`
	DueDate         string `json:"due_date"`
	AssignedDate    string `json:"assigned_date"`
	Priority        string `json:"priority"`
	Location        string `json:"location"`
}

// Validate checks the fields the relay template cannot do without.
func (p Params) Validate() error {
	if !strings.Contains(p.ToEmail, "@") {
		return fmt.Errorf("invalid email address: %q", p.ToEmail)
	}
	if p.StaffName == "" {
		return fmt.Errorf("missing staff_name")
	}
	if p.TaskTitle == "" {
		return fmt.Errorf("missing task_title")
	}
	return nil
}

// Relay is a client for an EmailJS-style template send endpoint.
type Relay struct {
	client     *http.Client
	url        string
	serviceID  string
	templateID string
	publicKey  string
}

func NewRelay(client *http.Client, url, serviceID, templateID, publicKey string) *Relay {
	return &Relay{
		client:     client,
		url:        url,
		serviceID:  serviceID,
		templateID: templateID,
		publicKey:  publicKey,
	}
}

// Send validates the params and posts them to the relay. A provider that
// does not answer before the client timeout yields ErrTimeout; an answer
// other than 200 yields a *RejectionError.
func (r *Relay) Send(ctx context.Context, p Params) error {
	if err := p.Validate(); err != nil {
		return err
	}

	payload := struct {
		ServiceID      string `json:"service_id"`
		TemplateID     string `json:"template_id"`
		UserID         string `json:"user_id"`
		TemplateParams Params `json:"template_params"`
	}{
		ServiceID:      r.serviceID,
		TemplateID:     r.templateID,
		UserID:         r.publicKey,
		TemplateParams: p,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to encode relay payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to build relay request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := r.client.Do(req)
	if err != nil {
		if isTimeout(err) {
			return fmt.Errorf("send to %s: %w", p.ToEmail, ErrTimeout)
		}
		return fmt.Errorf("failed to reach email relay: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		text, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return &RejectionError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(text))}
	}
	return nil
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr interface{ Timeout() bool }
	return errors.As(err, &netErr) && netErr.Timeout()
}
