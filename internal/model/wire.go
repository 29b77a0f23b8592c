package model

// Request and response contracts of the external collaborators.

// RawTimeSlot is a slot as returned by the availability service.
type RawTimeSlot struct {
	StartTime string     `json:"startTime"`
	EndTime   string     `json:"endTime"`
	Status    SlotStatus `json:"status"`
	Price     float64    `json:"price"`
}

// DaySchedule groups raw slots by date.
type DaySchedule struct {
	Date      string        `json:"date"` // YYYY-MM-DD
	TimeSlots []RawTimeSlot `json:"timeSlots"`
}

// AvailabilityResponse is the getAvailability response.
type AvailabilityResponse struct {
	Schedule []DaySchedule `json:"schedule"`
}

// BookingDetail is one flattened (resource, start, end) tuple.
type BookingDetail struct {
	ResourceID string `json:"courtId"`
	StartTime  string `json:"startTime"`
	EndTime    string `json:"endTime"`
}

// PriceRequest is the calculatePrice request.
type PriceRequest struct {
	BookingDate    string          `json:"bookingDate"`
	BookingDetails []BookingDetail `json:"bookingDetails"`
}

// ResourcePrice is a per-resource line of PriceDetails.
type ResourcePrice struct {
	ResourceID      string  `json:"courtId"`
	OriginalPrice   float64 `json:"originalPrice"`
	DiscountedPrice float64 `json:"discountedPrice"`
	PromotionName   string  `json:"promotionName,omitempty"`
}

// PriceDetails is the authoritative server-side price.
type PriceDetails struct {
	TotalPrice     float64         `json:"totalPrice"`
	MinimumDeposit float64         `json:"minimumDeposit"`
	CourtPrices    []ResourcePrice `json:"courtPrices"`
}

// BookingRequest is the createBooking request.
type BookingRequest struct {
	BookingDate    string          `json:"bookingDate"`
	BookingDetails []BookingDetail `json:"bookingDetails"`
	PaymentType    PaymentMode     `json:"paymentType"`
	Note           string          `json:"note,omitempty"`
}

// BookingResponse is the createBooking response.
type BookingResponse struct {
	ID                string `json:"id"`
	Status            string `json:"status"`
	SessionsRemaining *int   `json:"sessionsRemaining,omitempty"`
}

// PaymentStatus is the status sent with a payment request.
type PaymentStatus string

const PaymentStatusCompleted PaymentStatus = "COMPLETED"

// PaymentRequest is the processPayment request.
type PaymentRequest struct {
	Amount      float64       `json:"amount"`
	ReferenceID string        `json:"referenceId"`
	BookingID   string        `json:"bookingId"`
	PaymentType PaymentMode   `json:"paymentType"`
	ProviderID  string        `json:"providerId"`
	Status      PaymentStatus `json:"status"`
}
