// Package chat contains the core concepts of the employer/applicant messaging.
// No runtime, network, or storage logic should be added here.
package chat

import "time"

type (
	UserID       string
	RoomID       string
	ConnectionID string
)

// Room is the two-party conversation between one employer and one applicant.
type Room struct {
	ID          RoomID
	EmployerID  UserID
	ApplicantID UserID
	CreatedAt   time.Time
}

// HasParticipant reports whether user is the employer or the applicant of the room.
func (r Room) HasParticipant(user UserID) bool {
	return user != "" && (r.EmployerID == user || r.ApplicantID == user)
}

// Counterpart returns the other participant, or an empty id when user is not a participant.
func (r Room) Counterpart(user UserID) UserID {
	switch user {
	case r.EmployerID:
		return r.ApplicantID
	case r.ApplicantID:
		return r.EmployerID
	default:
		return ""
	}
}

func (r Room) Participants() []UserID {
	return []UserID{r.EmployerID, r.ApplicantID}
}
