package platform

import "fmt"

// User is the profile returned by /auth/me. Its shape belongs to the server;
// the client only reads a few fields for display.
type User map[string]any

// ID returns the user id, if the profile carries one.
func (u User) ID() string {
	for _, k := range []string{"id", "_id", "userId"} {
		if s := u.str(k); s != "" {
			return s
		}
	}
	return ""
}

// Name returns the display name, falling back to the username.
func (u User) Name() string {
	if s := u.str("name"); s != "" {
		return s
	}
	return u.str("username")
}

// Email returns the email address.
func (u User) Email() string {
	return u.str("email")
}

// DisplayName returns the best available label for the user.
func (u User) DisplayName() string {
	switch {
	case u.Name() != "":
		return u.Name()
	case u.Email() != "":
		return u.Email()
	case u.ID() != "":
		return u.ID()
	default:
		return "unknown user"
	}
}

func (u User) str(key string) string {
	v, ok := u[key]
	if !ok || v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprint(v)
}
