package domain

import "time"

// Role enumerates account roles. Stored encrypted like every other
// personal field, so comparisons happen after decryption.
type Role string

const (
	RoleCustomer   Role = "CUSTOMER"
	RoleTechnician Role = "TECHNICIAN"
	RoleAdmin      Role = "ADMIN"
)

// User is the account record. Name, Surname, Phone, Email, Password and
// Role hold ciphertext exactly as persisted; the service layer owns
// encryption and decryption.
type User struct {
	ID         int64
	Name       string
	Surname    string
	Phone      string
	Email      string
	Password   string
	Role       string
	ExternalID int64
	IsActive   bool
	CreatedAt  time.Time
}
