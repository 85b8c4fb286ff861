package domain

// Permission is a platform-neutral channel permission bit.
type Permission uint8

const (
	PermissionViewChannel Permission = 1 << iota
	PermissionSendMessages
	PermissionReadHistory
	PermissionAttachFiles
)

// OverwriteSubject distinguishes role and member overwrites.
type OverwriteSubject string

const (
	OverwriteRole   OverwriteSubject = "ROLE"
	OverwriteMember OverwriteSubject = "MEMBER"
)

// PermissionOverwrite grants or denies permissions to one subject.
type PermissionOverwrite struct {
	SubjectID   string
	SubjectType OverwriteSubject
	Allow       Permission
	Deny        Permission
}

// ChannelSpec is what the provisioner is asked to create.
type ChannelSpec struct {
	Name       string
	ParentID   string
	Topic      string
	Overwrites []PermissionOverwrite
}
