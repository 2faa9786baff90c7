package chat

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRoom_Participants(t *testing.T) {
	req := require.New(t)
	room := Room{ID: "room-1", EmployerID: "acme", ApplicantID: "alice"}

	req.True(room.HasParticipant("acme"))
	req.True(room.HasParticipant("alice"))
	req.False(room.HasParticipant("bob"))
	req.False(room.HasParticipant(""))

	req.Equal(UserID("alice"), room.Counterpart("acme"))
	req.Equal(UserID("acme"), room.Counterpart("alice"))
	req.Empty(room.Counterpart("bob"))
	req.Equal([]UserID{"acme", "alice"}, room.Participants())
}
