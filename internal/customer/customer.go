package customer

// Customer is the party an order belongs to. A guest customer has no
// linked user identity (UserID == nil); its email exists only so the
// order confirmation can be delivered, it is never a login.
type Customer struct {
	ID        int    `json:"customerId"`
	UserID    *int   `json:"userId,omitempty"`
	Email     string `json:"email"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Phone     string `json:"phone"`
}

// IsGuest reports whether the customer was created for an unauthenticated
// checkout.
func (c Customer) IsGuest() bool {
	return c.UserID == nil
}

// FullName joins first and last name for notification rendering.
func (c Customer) FullName() string {
	if c.LastName == "" {
		return c.FirstName
	}
	return c.FirstName + " " + c.LastName
}
