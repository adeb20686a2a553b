package domain

import "time"

type Patron struct {
	ID         int32      `json:"id"`
	Name       string     `json:"name"`
	NationalID string     `json:"national_id"`
	BirthDate  *time.Time `json:"birth_date,omitempty"`
	Phone      string     `json:"phone"`
	Address    string     `json:"address"`
	Email      string     `json:"email"`
	CreatedAt  time.Time  `json:"created_at"`
}

func (p *Patron) Snapshot() RequesterSnapshot {
	return RequesterSnapshot{
		Name:       p.Name,
		NationalID: p.NationalID,
		BirthDate:  cloneTime(p.BirthDate),
		Phone:      p.Phone,
		Address:    p.Address,
	}
}
