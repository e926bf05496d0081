package models

// RemoteUser is a normalized external directory record. It exists only for
// the duration of one fetch and is never persisted.
type RemoteUser struct {
	ID           string
	PrimaryEmail string
	GivenName    string
	FamilyName   string
	DisplayName  string
	AvatarURL    string
	Suspended    bool
	Phone        string
	Location     string

	// Attributes carries raw extended attributes the adapter did not map to a
	// dedicated field.
	Attributes map[string]any
}
