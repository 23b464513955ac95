package entity

import (
	"time"

	"github.com/google/uuid"
)

type MemberRole string

const (
	MemberRoleBroadcaster MemberRole = "broadcaster"
	MemberRoleListener    MemberRole = "listener"
)

type Membership struct {
	Id          uuid.UUID
	SessionId   uuid.UUID
	UserId      string
	Role        MemberRole
	JoinedAt    time.Time
	ContactHint *string
}
