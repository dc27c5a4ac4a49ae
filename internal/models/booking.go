package models

import "time"

type Booking struct {
	ID            int64     `json:"id"`
	Reference     string    `json:"reference"`
	UserID        int64     `json:"user_id"`
	RenterName    string    `json:"renter_name"`
	RenterPhone   string    `json:"renter_phone"`
	RenterEmail   string    `json:"renter_email,omitempty"`
	DateOfRent    time.Time `json:"date_of_rent"`
	StartTime     string    `json:"start_time"`
	EndTime       string    `json:"end_time"`
	DurationHours float64   `json:"duration_hours"`
	PricePerHour  float64   `json:"price_per_hour"`
	TotalPrice    float64   `json:"total_price"`
	Status        string    `json:"status"` // pending, confirmed, cancelled
	Comment       string    `json:"comment,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// BookingFilter narrows listing queries. Zero values mean "no constraint".
type BookingFilter struct {
	Status string
	From   time.Time
	To     time.Time
}
