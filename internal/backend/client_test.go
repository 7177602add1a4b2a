package backend

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T, handler http.HandlerFunc) (*httptest.Server, *Client) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return srv, NewClient(srv.URL, "test-key", nil)
}

func TestNormalizeCallerID(t *testing.T) {
	_, client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/caller-id/normalize", r.URL.Path)
		assert.Equal(t, "(604) 555-0123", r.URL.Query().Get("rawNumber"))
		assert.Equal(t, "test-key", r.Header.Get("x-api-key"))
		json.NewEncoder(w).Encode(NormalizeResult{NormalizedNumber: "+16045550123"})
	})

	got, err := client.NormalizeCallerID(context.Background(), "(604) 555-0123")
	require.NoError(t, err)
	assert.Equal(t, "+16045550123", got.NormalizedNumber)
}

func TestUsersByPhone(t *testing.T) {
	_, client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/users/by-phone", r.URL.Path)
		assert.Equal(t, "+16045550123", r.URL.Query().Get("phone"))
		json.NewEncoder(w).Encode([]User{
			{ID: 42, Name: UserName{FirstName: "Jane", LastName: "Doe"}, DOB: "1999-03-15", Phone: "+16045550123"},
		})
	})

	users, err := client.UsersByPhone(context.Background(), "+16045550123")
	require.NoError(t, err)
	require.Len(t, users, 1)
	assert.Equal(t, 42, users[0].ID)
	assert.Equal(t, "Jane Doe", users[0].FullName())
}

func TestSearchUsers(t *testing.T) {
	var gotQuery map[string]string
	_, client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		gotQuery = map[string]string{
			"name":  r.URL.Query().Get("name"),
			"fuzzy": r.URL.Query().Get("fuzzy"),
		}
		json.NewEncoder(w).Encode([]User{})
	})

	_, err := client.SearchUsersByName(context.Background(), "Jane Doe")
	require.NoError(t, err)
	assert.Equal(t, "Jane Doe", gotQuery["name"])

	_, err = client.SearchUsersFuzzy(context.Background(), "DOE")
	require.NoError(t, err)
	assert.Equal(t, "DOE", gotQuery["fuzzy"])

	// Empty search terms short-circuit without an HTTP call.
	users, err := client.SearchUsersByName(context.Background(), "  ")
	require.NoError(t, err)
	assert.Nil(t, users)
}

func TestCreateUser(t *testing.T) {
	_, client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/users", r.URL.Path)
		var body CreateUserRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "Jane", body.FirstName)
		assert.Equal(t, "1999-03-15", body.DOB)
		json.NewEncoder(w).Encode(CreateUserResult{UserID: 7, MemberID: "M-7"})
	})

	got, err := client.CreateUser(context.Background(), CreateUserRequest{
		FirstName: "Jane", LastName: "Doe", DOB: "1999-03-15", Gender: "female", Phone: "+16045550123",
	})
	require.NoError(t, err)
	assert.Equal(t, 7, got.UserID)
}

func TestAvailability(t *testing.T) {
	_, client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		assert.Equal(t, "org-1", q.Get("organizationId"))
		assert.Equal(t, "2026-02-06", q.Get("fromDate"))
		assert.Equal(t, "2026-02-06", q.Get("toDate"))
		assert.Empty(t, q.Get("when"))
		json.NewEncoder(w).Encode([]Slot{
			{SlotID: 1, ProviderID: 9, Start: "2026-02-06T17:00:00Z", End: "2026-02-06T17:30:00Z"},
		})
	})

	slots, err := client.Availability(context.Background(), AvailabilityQuery{
		OrganizationID: "org-1", FromDate: "2026-02-06", ToDate: "2026-02-06",
	})
	require.NoError(t, err)
	require.Len(t, slots, 1)
	assert.Equal(t, 1, slots[0].SlotID)
}

func TestRescheduleOptionsUnwrapsSlots(t *testing.T) {
	_, client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/appointments/31/reschedule-options", r.URL.Path)
		var body RescheduleOptionsRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		require.NotNil(t, body.PreferredDateRange)
		assert.Equal(t, "2026-02-06", body.PreferredDateRange.From)
		json.NewEncoder(w).Encode(map[string][]Slot{
			"slots": {{SlotID: 4, ProviderID: 2, Start: "2026-02-06T18:00:00Z", End: "2026-02-06T18:30:00Z"}},
		})
	})

	slots, err := client.RescheduleOptions(context.Background(), 31, RescheduleOptionsRequest{
		PreferredDateRange: &DateRange{From: "2026-02-06", To: "2026-02-06"},
	})
	require.NoError(t, err)
	require.Len(t, slots, 1)
	assert.Equal(t, 4, slots[0].SlotID)
}

func TestRescheduleAppointment(t *testing.T) {
	_, client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPatch, r.Method)
		assert.Equal(t, "/appointments/31", r.URL.Path)
		var body map[string]int
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, 4, body["newSlotId"])
		w.Write([]byte(`{}`))
	})

	require.NoError(t, client.RescheduleAppointment(context.Background(), 31, 4))
}

func TestCancelAppointment(t *testing.T) {
	_, client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/appointments/12/cancel", r.URL.Path)
		var body map[string]bool
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.True(t, body["confirmed"])
		json.NewEncoder(w).Encode(CancelResult{Status: "cancelled"})
	})

	got, err := client.CancelAppointment(context.Background(), 12)
	require.NoError(t, err)
	assert.Equal(t, "cancelled", got.Status)
}

func TestErrorCarriesBackendMessage(t *testing.T) {
	_, client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		json.NewEncoder(w).Encode(map[string]string{"message": "slot no longer available"})
	})

	_, err := client.CreateAppointment(context.Background(), CreateAppointmentRequest{UserID: 1})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "slot no longer available")
	assert.Contains(t, err.Error(), "422")
}
