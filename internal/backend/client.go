package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/harborview-health/voice-scheduler/pkg/logging"
)

const defaultTimeout = 15 * time.Second

// Client is a thin REST client for the scheduling backend. All persistent
// state (users, availability, appointments, booking rules) lives behind it.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	logger     *logging.Logger
}

// NewClient creates a scheduling backend client.
func NewClient(baseURL, apiKey string, logger *logging.Logger) *Client {
	if logger == nil {
		logger = logging.Default()
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: defaultTimeout},
		logger:     logger,
	}
}

// NormalizeCallerID converts a raw caller-ID number to canonical E.164 form.
func (c *Client) NormalizeCallerID(ctx context.Context, rawNumber string) (*NormalizeResult, error) {
	var out NormalizeResult
	if err := c.get(ctx, "/caller-id/normalize", url.Values{"rawNumber": {rawNumber}}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// UsersByPhone looks up users registered under a normalized phone number.
func (c *Client) UsersByPhone(ctx context.Context, phone string) ([]User, error) {
	var out []User
	if err := c.get(ctx, "/users/by-phone", url.Values{"phone": {phone}}, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// SearchUsersByName searches users by spoken name.
func (c *Client) SearchUsersByName(ctx context.Context, name string) ([]User, error) {
	if strings.TrimSpace(name) == "" {
		return nil, nil
	}
	var out []User
	if err := c.get(ctx, "/users/search", url.Values{"name": {name}}, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// SearchUsersFuzzy searches users by a spelled-out (fuzzy) last name.
func (c *Client) SearchUsersFuzzy(ctx context.Context, spelled string) ([]User, error) {
	if strings.TrimSpace(spelled) == "" {
		return nil, nil
	}
	var out []User
	if err := c.get(ctx, "/users/search", url.Values{"fuzzy": {spelled}}, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// CreateUser registers a new user.
func (c *Client) CreateUser(ctx context.Context, req CreateUserRequest) (*CreateUserResult, error) {
	var out CreateUserResult
	if err := c.do(ctx, http.MethodPost, "/users", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// BookingRules fetches the organization's scheduling policies.
func (c *Client) BookingRules(ctx context.Context, orgID string) (*BookingRules, error) {
	var out BookingRules
	if err := c.get(ctx, "/organizations/"+url.PathEscape(orgID)+"/booking-rules", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Availability lists open slots matching the query.
func (c *Client) Availability(ctx context.Context, q AvailabilityQuery) ([]Slot, error) {
	params := url.Values{"organizationId": {q.OrganizationID}}
	if q.When != "" {
		params.Set("when", q.When)
	}
	if q.FromDate != "" {
		params.Set("fromDate", q.FromDate)
	}
	if q.ToDate != "" {
		params.Set("toDate", q.ToDate)
	}
	if q.ProviderID != 0 {
		params.Set("providerId", strconv.Itoa(q.ProviderID))
	}
	if q.VisitType != "" {
		params.Set("visitType", q.VisitType)
	}
	var out []Slot
	if err := c.get(ctx, "/availability", params, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// CreateAppointment books a slot.
func (c *Client) CreateAppointment(ctx context.Context, req CreateAppointmentRequest) (*CreateAppointmentResult, error) {
	var out CreateAppointmentResult
	if err := c.do(ctx, http.MethodPost, "/appointments", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ListAppointments lists a user's appointments filtered by status.
func (c *Client) ListAppointments(ctx context.Context, userID int, status string) ([]Appointment, error) {
	params := url.Values{"userId": {strconv.Itoa(userID)}}
	if status != "" {
		params.Set("status", status)
	}
	var out []Appointment
	if err := c.get(ctx, "/appointments", params, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// RescheduleOptions fetches replacement slots for an appointment.
func (c *Client) RescheduleOptions(ctx context.Context, appointmentID int, req RescheduleOptionsRequest) ([]Slot, error) {
	var out struct {
		Slots []Slot `json:"slots"`
	}
	path := fmt.Sprintf("/appointments/%d/reschedule-options", appointmentID)
	if err := c.do(ctx, http.MethodPost, path, req, &out); err != nil {
		return nil, err
	}
	return out.Slots, nil
}

// RescheduleAppointment moves an appointment to a new slot.
func (c *Client) RescheduleAppointment(ctx context.Context, appointmentID, newSlotID int) error {
	path := fmt.Sprintf("/appointments/%d", appointmentID)
	body := map[string]int{"newSlotId": newSlotID}
	return c.do(ctx, http.MethodPatch, path, body, nil)
}

// CancelOptions lists the user's cancellable appointments.
func (c *Client) CancelOptions(ctx context.Context, userID int) ([]Appointment, error) {
	var out []Appointment
	body := map[string]int{"userId": userID}
	if err := c.do(ctx, http.MethodPost, "/appointments/cancel-options", body, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// CancelAppointment cancels a confirmed appointment.
func (c *Client) CancelAppointment(ctx context.Context, appointmentID int) (*CancelResult, error) {
	var out CancelResult
	path := fmt.Sprintf("/appointments/%d/cancel", appointmentID)
	body := map[string]bool{"confirmed": true}
	if err := c.do(ctx, http.MethodPost, path, body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) get(ctx context.Context, path string, params url.Values, out interface{}) error {
	u := c.baseURL + path
	if len(params) > 0 {
		u += "?" + params.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return fmt.Errorf("backend: create request: %w", err)
	}
	return c.send(req, out)
}

func (c *Client) do(ctx context.Context, method, path string, body, out interface{}) error {
	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("backend: marshal request: %w", err)
		}
		reader = bytes.NewReader(encoded)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("backend: create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return c.send(req, out)
}

func (c *Client) send(req *http.Request, out interface{}) error {
	if c.apiKey != "" {
		req.Header.Set("x-api-key", c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("backend: http request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("backend: read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var apiErr struct {
			Message string `json:"message"`
		}
		if json.Unmarshal(respBody, &apiErr) == nil && apiErr.Message != "" {
			return fmt.Errorf("backend: status %d: %s", resp.StatusCode, apiErr.Message)
		}
		msg := string(respBody)
		if len(msg) > 300 {
			msg = msg[:300]
		}
		return fmt.Errorf("backend: status %d: %s", resp.StatusCode, msg)
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("backend: unmarshal response: %w", err)
	}
	return nil
}
