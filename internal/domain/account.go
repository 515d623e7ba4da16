package domain

import "time"

// Account is a registered identity. PasswordDigest is the stored output of
// the credential hasher and never leaves the service.
type Account struct {
	ID             string
	Email          string
	PasswordDigest string
	CreatedAt      time.Time
}
