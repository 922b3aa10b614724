package db

// Car returns the user's car number, or the empty string when none is
// assigned.
func (u User) Car() string {
	if u.CarNumber.Valid {
		return u.CarNumber.String
	}
	return ""
}

// IsDriver reports whether the user is a regular (non-admin) driver account.
func (u User) IsDriver() bool {
	return !u.Admin
}
