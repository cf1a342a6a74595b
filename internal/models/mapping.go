// internal/models/mapping.go
package models

// SAToAMMapping is one historical row linking a specialist to an account
// manager. Read-only input to the auto-assignment engine.
type SAToAMMapping struct {
	SpecialistName  string   `json:"specialistName"`
	SpecialistEmail string   `json:"specialistEmail"`
	OwnerEmail      string   `json:"ownerEmail"`
	Region          string   `json:"region"`
	Practices       []string `json:"practices"`
}

// User is a directory record.
type User struct {
	Name      string   `json:"name"`
	Email     string   `json:"email"`
	Role      string   `json:"role"`
	Practices []string `json:"practices"`
}
