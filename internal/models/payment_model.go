package models

import "time"

// Payment statuses.
const (
	PaymentStatusSuccess = "success"
)

// PaymentRecord is an append-only log entry written together with the profile
// update it pays for. The document ID is the gateway reference.
type PaymentRecord struct {
	Reference string    `json:"reference" firestore:"-"`
	UserID    string    `json:"userId" firestore:"userId"`
	Email     string    `json:"email" firestore:"email"`
	Amount    int64     `json:"amount" firestore:"amount"` // minor units
	Currency  string    `json:"currency" firestore:"currency"`
	Plan      Plan      `json:"plan" firestore:"plan"`
	Interval  string    `json:"interval,omitempty" firestore:"interval"`
	Status    string    `json:"status" firestore:"status"`
	Gateway   string    `json:"gateway" firestore:"gateway"`
	Date      time.Time `json:"date" firestore:"date"`
}
