package stockroom

import "strings"

// DefaultAvatar is the placeholder image used for every profile
const DefaultAvatar = "data:image/svg+xml;charset=UTF-8,%3csvg%20xmlns%3d%22http%3a%2f%2fwww.w3.org%2f2000%2fsvg%22%20viewBox%3d%220%200%2024%2024%22%20fill%3d%22%239ca3af%22%3e%3cpath%20fill-rule%3d%22evenodd%22%20d%3d%22M18.685%2019.097A9.723%209.723%200%200021.75%2012c0-5.385-4.365-9.75-9.75-9.75S2.25%206.615%202.25%2012a9.723%209.723%200%20003.065%207.097A9.716%209.716%200%200012%2021.75a9.716%209.716%200%20006.685-2.653zm-12.54-1.285A7.486%207.486%200%200112%2015a7.486%207.486%200%20015.855%202.812A8.224%208.224%200%200112%2020.25a8.224%208.224%200%2001-5.855-2.438zM15.75%209a3.75%203.75%200%2011-7.5%200%203.75%203.75%200%20017.5%200z%22%20clip-rule%3d%22evenodd%22%20%2f%3e%3c%2fsvg%3e"

const (
	AttributeEmail = "email"
	AttributeName  = "name"
)

// UserProfile is the local view of the authenticated identity
type UserProfile struct {
	Name   string `json:"name"`
	Email  string `json:"email"`
	Avatar string `json:"avatar"`
}

// DeriveProfile builds a UserProfile from provider attributes.
// The email attribute is required; name falls back to the email local part.
func DeriveProfile(attrs Attributes) (UserProfile, error) {
	email := attrs[AttributeEmail]
	if strings.TrimSpace(email) == "" {
		return UserProfile{}, withMetadata(ErrMissingAttribute, nil, map[string]any{
			"attribute": AttributeEmail,
		})
	}

	name := attrs[AttributeName]
	if name == "" {
		name = localPart(email)
	}

	return UserProfile{
		Name:   name,
		Email:  email,
		Avatar: DefaultAvatar,
	}, nil
}

func localPart(email string) string {
	if i := strings.Index(email, "@"); i >= 0 {
		return email[:i]
	}
	return email
}
