package model

import (
	"strings"
	"time"
)

// Customer is the company an audit is performed for.
type Customer struct {
	ID            string    `json:"id"`
	CompanyName   string    `json:"company_name" yaml:"company_name"`
	ContactPerson string    `json:"contact_person,omitempty" yaml:"contact_person"`
	Street        string    `json:"street,omitempty" yaml:"street"`
	PostalCode    string    `json:"postal_code,omitempty" yaml:"postal_code"`
	City          string    `json:"city,omitempty" yaml:"city"`
	Phone         string    `json:"phone,omitempty" yaml:"phone"`
	Email         string    `json:"email,omitempty" yaml:"email"`
	Notes         string    `json:"notes,omitempty" yaml:"notes"`
	LogoRef       string    `json:"logo_ref,omitempty" yaml:"logo_ref"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// AddressLine joins street and "postal city" with a middle dot, skipping
// empty parts.
func (c Customer) AddressLine() string {
	var parts []string
	if s := strings.TrimSpace(c.Street); s != "" {
		parts = append(parts, s)
	}
	locality := strings.TrimSpace(strings.TrimSpace(c.PostalCode) + " " + strings.TrimSpace(c.City))
	if locality != "" {
		parts = append(parts, locality)
	}
	return strings.Join(parts, " · ")
}
