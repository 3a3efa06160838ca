package domain

import "time"

type Profile struct {
	Phone      string
	Address    string
	City       string
	State      string
	PostalCode string
	Country    string
}

// FillBlanks copies fields from src into the empty fields of p and reports whether anything changed.
// Non-empty fields are never overwritten.
func (p *Profile) FillBlanks(src Profile) bool {
	changed := false
	fill := func(dst *string, v string) {
		if *dst == "" && v != "" {
			*dst = v
			changed = true
		}
	}
	fill(&p.Phone, src.Phone)
	fill(&p.Address, src.Address)
	fill(&p.City, src.City)
	fill(&p.State, src.State)
	fill(&p.PostalCode, src.PostalCode)
	fill(&p.Country, src.Country)
	return changed
}

type User struct {
	ID           int64
	Name         string
	Email        string
	PasswordHash string
	Profile      Profile
	CreatedAt    time.Time
	UpdatedAt    time.Time
}
