package domain

// CartEntry is a grouped view of the flat cart sequence.
type CartEntry struct {
	ProductID int64 `json:"productId"`
	Quantity  int   `json:"quantity"`
}

// PendingOrder is persisted right before the 3-D-Secure redirect so the
// order can be rebuilt once the payment provider sends the user back.
// Timestamp is epoch milliseconds.
type PendingOrder struct {
	Cart      []int64 `json:"cart"`
	AddressID int64   `json:"addressId"`
	Timestamp int64   `json:"timestamp"`
}
