package models

import (
	"time"

	id "trustcore/pkg/domain"
)

// Status tracks a shipment through the export-finance flow.
type Status string

const (
	StatusDraft     Status = "draft"
	StatusSubmitted Status = "submitted"
	StatusFinanced  Status = "financed"
	StatusShipped   Status = "shipped"
	StatusClosed    Status = "closed"
)

// Valid reports whether the status is one of the known lifecycle states.
func (s Status) Valid() bool {
	switch s {
	case StatusDraft, StatusSubmitted, StatusFinanced, StatusShipped, StatusClosed:
		return true
	}
	return false
}

// Shipment is a tenant-owned export record. Version is the optimistic
// concurrency token: every successful update increments it, and an update
// carrying a stale version is rejected rather than silently overwritten.
type Shipment struct {
	ID              id.ShipmentID
	TenantID        id.TenantID
	Reference       string
	Status          Status
	ConsigneeName   string
	OriginPort      string
	DestinationPort string
	ValueCents      int64
	Currency        string
	Version         int64
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// Patch carries the fields an update may change. Nil means leave as is.
type Patch struct {
	Status          *Status
	ConsigneeName   *string
	OriginPort      *string
	DestinationPort *string
	ValueCents      *int64
	Currency        *string
}

// Apply copies the patch onto the shipment.
func (p Patch) Apply(sh *Shipment) {
	if p.Status != nil {
		sh.Status = *p.Status
	}
	if p.ConsigneeName != nil {
		sh.ConsigneeName = *p.ConsigneeName
	}
	if p.OriginPort != nil {
		sh.OriginPort = *p.OriginPort
	}
	if p.DestinationPort != nil {
		sh.DestinationPort = *p.DestinationPort
	}
	if p.ValueCents != nil {
		sh.ValueCents = *p.ValueCents
	}
	if p.Currency != nil {
		sh.Currency = *p.Currency
	}
}
