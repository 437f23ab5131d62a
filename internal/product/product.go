package product

// Product maps to the `products` table. The SKU is the join key to the
// external inventory system, so it is carried everywhere the product id is.
type Product struct {
	ID    int    `json:"productId"`
	SKU   string `json:"sku"`
	Name  string `json:"productName"`
	Price int    `json:"productPrice"`
}
