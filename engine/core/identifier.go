package core

import "github.com/google/uuid"

// IdentifierNew returns a random identifier used to tag loaded resources
// in logs and lookups.
func IdentifierNew() string {
	return uuid.NewString()
}
