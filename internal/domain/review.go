package domain

import "time"

type Review struct {
	ID        int64     `json:"id"`
	ProductID int64     `json:"product_id"`
	UserName  string    `json:"user_name,omitempty"`
	Rating    int       `json:"rating"`
	Comment   string    `json:"comment"`
	CreatedAt time.Time `json:"created_at"`
}

type ReviewInput struct {
	ProductID int64  `json:"productId,omitempty"`
	Rating    int    `json:"rating,omitempty"`
	Comment   string `json:"comment,omitempty"`
}
