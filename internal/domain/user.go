package domain

type UserRole string

const (
	UserAdmin     UserRole = "admin"
	UserManager   UserRole = "manager"
	UserExecutive UserRole = "executive"
	UserMember    UserRole = "member"
	UserGuest     UserRole = "guest"
)

// UserSummary is the public part of a profile.
type UserSummary struct {
	ID       string
	FullName string
	Email    string
	Role     UserRole
}
