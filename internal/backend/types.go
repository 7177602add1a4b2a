package backend

// NormalizeResult is the canonical form of a raw caller-ID number.
type NormalizeResult struct {
	NormalizedNumber string `json:"normalizedNumber"`
	Country          string `json:"country,omitempty"`
	Type             string `json:"type,omitempty"`
}

// UserName splits a stored name into its parts.
type UserName struct {
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
}

// User is a user record as returned by phone/name search.
type User struct {
	ID     int      `json:"id"`
	Name   UserName `json:"name"`
	DOB    string   `json:"dob"`
	Gender string   `json:"gender"`
	Phone  string   `json:"phone"`
	Status string   `json:"status"`
}

// FullName joins first and last name, tolerating either being empty.
func (u User) FullName() string {
	switch {
	case u.Name.FirstName == "":
		return u.Name.LastName
	case u.Name.LastName == "":
		return u.Name.FirstName
	default:
		return u.Name.FirstName + " " + u.Name.LastName
	}
}

// CreateUserRequest is the body for registering a new user.
type CreateUserRequest struct {
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	DOB       string `json:"dob"`
	Gender    string `json:"gender"`
	Phone     string `json:"phone"`
	Email     string `json:"email,omitempty"`
}

// CreateUserResult is the backend's acknowledgment of a registration.
type CreateUserResult struct {
	UserID    int    `json:"userId"`
	MemberID  string `json:"memberId"`
	CreatedAt string `json:"createdAt"`
}

// WorkingHours is one weekday's opening window.
type WorkingHours struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

// BookingRules are the organization's scheduling policies.
type BookingRules struct {
	AcceptingBookings bool                    `json:"acceptingBookings"`
	MinDaysInAdvance  int                     `json:"minDaysInAdvance"`
	MaxDaysInAdvance  int                     `json:"maxDaysInAdvance"`
	WorkingHours      map[string]WorkingHours `json:"workingHours"`
	AllowedVisitTypes []string                `json:"allowedVisitTypes"`
}

// Slot is a bookable provider time interval. Start and End are RFC3339 UTC.
type Slot struct {
	SlotID     int    `json:"slotId"`
	ProviderID int    `json:"providerId"`
	Start      string `json:"start"`
	End        string `json:"end"`
}

// AvailabilityQuery filters the availability search.
type AvailabilityQuery struct {
	OrganizationID string
	When           string // "this_week" | "next_week"
	FromDate       string // YYYY-MM-DD
	ToDate         string // YYYY-MM-DD
	ProviderID     int
	VisitType      string
}

// CreateAppointmentRequest books a slot for a user.
type CreateAppointmentRequest struct {
	UserID         int    `json:"userId"`
	OrganizationID string `json:"organizationId"`
	ProviderID     int    `json:"providerId"`
	VisitType      string `json:"visitType"`
	SlotID         int    `json:"slotId,omitempty"`
	Reason         string `json:"reason,omitempty"`
	Channel        string `json:"channel,omitempty"`
}

// CreateAppointmentResult is the backend's booking acknowledgment.
type CreateAppointmentResult struct {
	AppointmentID int    `json:"appointmentId"`
	Start         string `json:"start"`
	End           string `json:"end"`
	Status        string `json:"status"`
}

// Appointment is one entry of a user's appointment list.
type Appointment struct {
	ID           int    `json:"id"`
	ProviderName string `json:"providerName"`
	Start        string `json:"start"`
	End          string `json:"end"`
	VisitType    string `json:"visitType"`
	Status       string `json:"status"`
}

// DateRange bounds a reschedule-options search.
type DateRange struct {
	From string `json:"from"`
	To   string `json:"to"`
}

// RescheduleOptionsRequest narrows the offered replacement slots.
type RescheduleOptionsRequest struct {
	PreferredDateRange *DateRange `json:"preferredDateRange,omitempty"`
	TimeOfDay          string     `json:"timeOfDay,omitempty"`
}

// CancelResult reports a cancellation, including any late-cancel penalty.
type CancelResult struct {
	Status  string `json:"status"`
	Penalty *struct {
		Amount   float64 `json:"amount"`
		Currency string  `json:"currency"`
	} `json:"penalty,omitempty"`
}
