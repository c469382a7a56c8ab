package clients

import (
	"errors"
	"fmt"
	"net/mail"
	"strings"
)

// Roster entry kinds.
const (
	TypeAthlete = "athlete"
	TypeGym     = "gym"
)

// Roster entry statuses.
const (
	StatusActive   = "active"
	StatusInactive = "inactive"
	StatusPending  = "pending"
)

const (
	maxNameLength  = 200
	maxNotesLength = 4000
)

var (
	// ErrInvalidClient indicates that client input failed validation.
	ErrInvalidClient = errors.New("clients: invalid client")
	// ErrClientNotFound indicates that no client exists for the identifier.
	ErrClientNotFound = errors.New("clients: client not found")
)

// Client is an athlete or gym on a coach's roster.
type Client struct {
	ID               string            `gorm:"column:id;primaryKey;size:190;not null" json:"id"`
	Type             string            `gorm:"column:type;size:16;not null;index:idx_clients_type_name" json:"type"`
	Name             string            `gorm:"column:name;size:200;not null;index:idx_clients_type_name" json:"name"`
	Email            string            `gorm:"column:email;size:320;not null;default:''" json:"email,omitempty"`
	Status           string            `gorm:"column:status;size:16;not null;default:'active'" json:"status"`
	CoachID          string            `gorm:"column:coach_id;size:190;not null;default:'';index" json:"coach_id,omitempty"`
	GymID            string            `gorm:"column:gym_id;size:190;not null;default:'';index" json:"gym_id,omitempty"`
	Notes            string            `gorm:"column:notes;type:text;not null;default:''" json:"notes,omitempty"`
	Details          map[string]string `gorm:"column:details;serializer:json" json:"details,omitempty"`
	CreatedAtSeconds int64             `gorm:"column:created_at_s;not null" json:"created_at_s"`
	UpdatedAtSeconds int64             `gorm:"column:updated_at_s;not null" json:"updated_at_s"`
}

// TableName provides the explicit table binding for GORM.
func (Client) TableName() string {
	return "clients"
}

// ClientInput carries the fields accepted when creating a client.
type ClientInput struct {
	Type    string            `json:"type"`
	Name    string            `json:"name"`
	Email   string            `json:"email"`
	Status  string            `json:"status"`
	CoachID string            `json:"coach_id"`
	Notes   string            `json:"notes"`
	Details map[string]string `json:"details"`
}

// Filter narrows roster listings and counts. Empty fields match everything.
type Filter struct {
	Type    string
	CoachID string
}

func (input ClientInput) normalized() (ClientInput, error) {
	result := input
	result.Type = strings.ToLower(strings.TrimSpace(input.Type))
	result.Name = strings.TrimSpace(input.Name)
	result.Email = strings.TrimSpace(input.Email)
	result.Status = strings.ToLower(strings.TrimSpace(input.Status))
	result.CoachID = strings.TrimSpace(input.CoachID)
	result.Notes = strings.TrimSpace(input.Notes)
	if result.Type == "" {
		result.Type = TypeAthlete
	}
	if result.Status == "" {
		result.Status = StatusActive
	}

	if !validType(result.Type) {
		return ClientInput{}, fmt.Errorf("%w: unknown type %q", ErrInvalidClient, result.Type)
	}
	switch result.Status {
	case StatusActive, StatusInactive, StatusPending:
	default:
		return ClientInput{}, fmt.Errorf("%w: unknown status %q", ErrInvalidClient, result.Status)
	}
	if result.Name == "" {
		return ClientInput{}, fmt.Errorf("%w: empty name", ErrInvalidClient)
	}
	if len(result.Name) > maxNameLength {
		return ClientInput{}, fmt.Errorf("%w: name exceeds %d characters", ErrInvalidClient, maxNameLength)
	}
	if len(result.Notes) > maxNotesLength {
		return ClientInput{}, fmt.Errorf("%w: notes exceed %d characters", ErrInvalidClient, maxNotesLength)
	}
	if result.Email != "" {
		if _, err := mail.ParseAddress(result.Email); err != nil {
			return ClientInput{}, fmt.Errorf("%w: invalid email", ErrInvalidClient)
		}
	}
	return result, nil
}

func validType(value string) bool {
	return value == TypeAthlete || value == TypeGym
}
