package cart

// Session tells whether a cart belongs to a guest or to a signed-in user.
// The zero value is a guest.
type Session struct {
	userID string
}

func Guest() Session {
	return Session{}
}

func Authenticated(userID string) Session {
	return Session{userID: userID}
}

// UserID returns the owning user, or false for a guest.
func (s Session) UserID() (string, bool) {
	return s.userID, s.userID != ""
}

func (s Session) IsGuest() bool {
	return s.userID == ""
}

func (s Session) String() string {
	if s.IsGuest() {
		return "guest"
	}
	return "user:" + s.userID
}
