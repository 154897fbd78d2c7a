package models

// All lists every persisted model in migration order.
func All() []interface{} {
	return []interface{}{
		&User{},
		&Workspace{},
		&WorkspaceMember{},
		&WorkspaceInvitation{},
		&Project{},
		&ProjectMember{},
		&Task{},
		&Comment{},
		&Activity{},
		&Notification{},
		&TeamMember{},
		&Token{},
		&FilterPreset{},
	}
}
