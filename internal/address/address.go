package address

type Address struct {
	AddressID   int    `json:"addressId"`
	CustomerID  int    `json:"customerId"`
	AddressDesc string `json:"addressDesc"`
	Phone       string `json:"phone"`
	AddressName string `json:"addressName"`
}
