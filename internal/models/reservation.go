package models

import "time"

// ReservationStatus is the backend status of a reservation.
type ReservationStatus string

const (
	ReservationConfirmed ReservationStatus = "confirmed"
	ReservationCancelled ReservationStatus = "cancelled"
	ReservationCompleted ReservationStatus = "completed"
)

// Reservation is a booked menu slot.
type Reservation struct {
	ID              int64             `json:"reservation_id"`
	StoreID         int64             `json:"store_id"`
	StoreName       string            `json:"store_name"`
	MenuID          int64             `json:"menu_id"`
	MenuName        string            `json:"menu_name"`
	DesignerName    string            `json:"designer_name,omitempty"`
	ReservationTime string            `json:"reservation_time"`
	DiscountPrice   int               `json:"discount_price"`
	Status          ReservationStatus `json:"reservation_status"`
	CreatedAt       time.Time         `json:"created_at"`
}

// ReservationRequest is the body of a reservation-create call.
type ReservationRequest struct {
	MenuID     int64  `json:"menu_id"`
	DesignerID *int64 `json:"designer_id,omitempty"`
	Time       int    `json:"time"`
	Agreed     bool   `json:"agreed"`
}

// User is the authenticated account profile.
type User struct {
	Email    string `json:"user_email"`
	ImageURL string `json:"user_image_url"`
	Role     string `json:"user_role"`
	Address  string `json:"user_address"`
}

// Address is the current display address.
type Address struct {
	RoadAddr  string `json:"road_addr"`
	JibunAddr string `json:"jibun_addr"`
}
