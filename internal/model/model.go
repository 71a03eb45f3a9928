// Package model defines domain entities used by services and repositories.
package model

import (
	"time"
)

// Trip is the grouping entity: one spreadsheet per trip.
type Trip struct {
	ID            int64
	Name          string    // group label shown in the sheet header
	ShipName      string
	DepartureDate time.Time
	ReturnDate    time.Time
	SpreadsheetID *string // bound spreadsheet; nil until first sync
	CoverImage    string  // local path or remote URL
}

// Reservation belongs to a trip and holds cabin and payment data shared by its travelers.
type Reservation struct {
	ID            int64
	TripID        int64
	Code          string
	Cabin         string
	Category      string
	Flight        string
	ContactPhone  string
	PaymentDate   *time.Time
	PaymentMethod string
	PaymentAmount int64
	Agent         string
	Remark1       string
	Remark2       string
	ContractFile  string // local path or remote URL
	CreatedAt     time.Time
}

// Traveler is a leaf entity; one spreadsheet row each.
type Traveler struct {
	ID              int64
	ReservationID   int64
	RoomNumber      int // 0 means unset and sorts as room 1
	Surname         string
	GivenName       string
	LocalName       string
	NationalID      string
	Sex             string
	BirthDate       *time.Time
	PassportNo      string
	PassportIssued  *time.Time
	PassportExpires *time.Time
	Phone           string
	PassportImage   string // local path or remote URL
	SignatureImage  string // local path or remote URL
}

// RemoteRef is the stable external reference produced by any create or upload.
type RemoteRef struct {
	ExternalID string `json:"external_id"`
	URL        string `json:"url"`
}

// SyncResult summarizes one spreadsheet sync.
type SyncResult struct {
	TripID        int64  `json:"trip_id"`
	SpreadsheetID string `json:"spreadsheet_id"`
	URL           string `json:"url"`
	FolderID      string `json:"folder_id"` // set when the spreadsheet was created by this sync
	Rows          int    `json:"rows"`
	Created       bool   `json:"created"` // a new spreadsheet was created
	Healed        bool   `json:"healed"`  // the previous binding pointed at a missing spreadsheet
}

// Token is a signed operator access token.
type Token struct {
	AccessToken string
	Operator    string
	ExpiresAt   time.Time
}
