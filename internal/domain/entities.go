package domain

import "time"

// Customer is a stored customer document.
type Customer struct {
	ID          string    `json:"_id"`
	Name        string    `json:"name"`
	Email       string    `json:"email"`
	TotalSpends float64   `json:"totalSpends"`
	LastVisit   time.Time `json:"lastVisit"`
	Visits      int64     `json:"visits"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// CustomerPayload is the submitted customer shape. Pointers distinguish
// absent fields from zero values.
type CustomerPayload struct {
	Name        string     `json:"name" validate:"required"`
	Email       string     `json:"email" validate:"required,mailshape"`
	TotalSpends *Number    `json:"totalSpends" validate:"required,gte=0"`
	LastVisit   *Timestamp `json:"lastVisit" validate:"required"`
	Visits      *Integer   `json:"visits" validate:"required,gte=0"`
}

// Customer builds the document to persist. Call only after validation.
func (p CustomerPayload) Customer() Customer {
	return Customer{
		Name:        p.Name,
		Email:       p.Email,
		TotalSpends: float64(*p.TotalSpends),
		LastVisit:   p.LastVisit.Time,
		Visits:      int64(*p.Visits),
	}
}

// Order is a stored order document.
type Order struct {
	ID         string    `json:"_id"`
	CustomerID string    `json:"customerId"`
	Amount     float64   `json:"amount"`
	Date       time.Time `json:"date"`
	CreatedAt  time.Time `json:"createdAt"`
	UpdatedAt  time.Time `json:"updatedAt"`
}

type OrderPayload struct {
	CustomerID string     `json:"customerId" validate:"required"`
	Amount     *Number    `json:"amount" validate:"required"`
	Date       *Timestamp `json:"date" validate:"required"`
}

// Order builds the document to persist. Call only after validation.
func (p OrderPayload) Order() Order {
	return Order{
		CustomerID: p.CustomerID,
		Amount:     float64(*p.Amount),
		Date:       p.Date.Time,
	}
}

// Target is one campaign recipient. MailStatus is nil until the delivery
// sampler has run.
type Target struct {
	CustomerID    string `json:"customer_id"`
	CustomerEmail string `json:"customer_email"`
	MailStatus    *bool  `json:"mail_status,omitempty"`
}

// Campaign is a stored campaign document.
type Campaign struct {
	ID          string    `json:"_id"`
	Email       string    `json:"email"`
	CustomerIDs []Target  `json:"customerIds"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

type CampaignPayload struct {
	Email       string   `json:"email" validate:"mailshape"`
	CustomerIDs []Target `json:"customerIds"`
}

func (p CampaignPayload) Campaign() Campaign {
	targets := p.CustomerIDs
	if targets == nil {
		targets = []Target{}
	}
	return Campaign{Email: p.Email, CustomerIDs: targets}
}
