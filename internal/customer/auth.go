package customer

import (
	"database/sql"
	"errors"
	"strconv"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v4"
)

// ErrNoToken means the request carried no verified JWT at all. Handlers
// on selectively public routes use it to fall back to the guest path.
var ErrNoToken = errors.New("no authentication token")

// Resolver maps the JWT's user identity to a customer row. The user_id
// claim is issued by the auth service and is not a customer id; the row
// linking the two is created on the user's first authenticated
// interaction, seeded from the profile claims the token carries.
type Resolver struct {
	db   *sql.DB
	repo Repository
}

func NewResolver(db *sql.DB, repo Repository) *Resolver {
	return &Resolver{db: db, repo: repo}
}

// FromCtx resolves the request's JWT to the customer it belongs to.
func (r *Resolver) FromCtx(c *fiber.Ctx) (Customer, error) {
	claims, err := claimsFromCtx(c)
	if err != nil {
		return Customer{}, err
	}
	userID, err := userIDClaim(claims)
	if err != nil {
		return Customer{}, err
	}

	cust, err := r.repo.GetByUserID(userID)
	if err == nil {
		return cust, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return Customer{}, err
	}

	tx, err := r.db.Begin()
	if err != nil {
		return Customer{}, err
	}
	defer tx.Rollback()

	cust, err = r.repo.CreateTx(tx, Customer{
		UserID:    &userID,
		Email:     stringClaim(claims, "email"),
		FirstName: stringClaim(claims, "first_name"),
		LastName:  stringClaim(claims, "last_name"),
	})
	if err != nil {
		return Customer{}, err
	}
	if err := tx.Commit(); err != nil {
		return Customer{}, err
	}
	return cust, nil
}

func claimsFromCtx(c *fiber.Ctx) (jwt.MapClaims, error) {
	u := c.Locals("user")
	if u == nil {
		return nil, ErrNoToken
	}
	tok, ok := u.(*jwt.Token)
	if !ok {
		return nil, fiber.ErrUnauthorized
	}
	claims, ok := tok.Claims.(jwt.MapClaims)
	if !ok {
		return nil, fiber.ErrUnauthorized
	}
	return claims, nil
}

func userIDClaim(claims jwt.MapClaims) (int, error) {
	switch v := claims["user_id"].(type) {
	case float64:
		return int(v), nil
	case int:
		return v, nil
	case int64:
		return int(v), nil
	case string:
		id, err := strconv.Atoi(v)
		if err != nil {
			return 0, fiber.ErrUnauthorized
		}
		return id, nil
	}
	return 0, fiber.ErrUnauthorized
}

func stringClaim(claims jwt.MapClaims, key string) string {
	s, _ := claims[key].(string)
	return s
}
