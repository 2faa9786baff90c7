package chat

type Command interface {
	RoomID() RoomID
}

// CreateOrJoinRoomCommand names the two participants of a room. The pair is
// ordered by role: the same employer/applicant couple always maps to one room.
type CreateOrJoinRoomCommand struct {
	EmployerID  UserID `validate:"required,max=128,nefield=ApplicantID"`
	ApplicantID UserID `validate:"required,max=128"`
}

type SendMessageCommand struct {
	Room    RoomID `validate:"required,max=64"`
	Content string `validate:"required"`
}

func (c SendMessageCommand) RoomID() RoomID {
	return c.Room
}

type MarkMessagesAsReadCommand struct {
	Room RoomID `validate:"required,max=64"`
}

func (c MarkMessagesAsReadCommand) RoomID() RoomID {
	return c.Room
}

type GetMessageCommand struct {
	Room   RoomID `validate:"required,max=64"`
	Cursor *string
}

func (c GetMessageCommand) RoomID() RoomID {
	return c.Room
}
