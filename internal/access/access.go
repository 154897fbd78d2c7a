// Package access decides who may read or write workspaces, projects and tasks.
//
// The predicates here are pure: callers load the facts about a (user, resource)
// pair into a Relation and ask. Nothing in this package touches the database.
package access

import (
	"strings"

	"github.com/gofrs/uuid"

	"teamtasks/backend/internal/apperr"
)

type Role string

const (
	RoleAdmin Role = "ADMIN"
	RoleUser  Role = "USER"
)

func (r Role) Valid() bool {
	return r == RoleAdmin || r == RoleUser
}

// Identity is the verified caller of a request.
type Identity struct {
	UserID uuid.UUID
	Role   Role
}

func RequireIdentity(id Identity) error {
	if id.UserID == uuid.Nil || !id.Role.Valid() {
		return apperr.ErrUnauthenticated
	}
	return nil
}

func IsAdmin(id Identity) bool {
	return id.Role == RoleAdmin
}

// Relation holds what is known about a caller with respect to one resource.
// ResourceOwner means the caller created the task or project itself; for a
// workspace it coincides with WorkspaceOwner.
type Relation struct {
	WorkspaceOwner  bool
	ResourceOwner   bool
	WorkspaceMember bool
	ProjectMember   bool
}

func CanAccess(rel Relation) bool {
	return rel.WorkspaceOwner || rel.ResourceOwner || rel.WorkspaceMember
}

// CanAccessProject also admits explicit project grants, which reach that
// project only and never the rest of the workspace.
func CanAccessProject(rel Relation) bool {
	return CanAccess(rel) || rel.ProjectMember
}

// CanEditProject covers rename, recolor, delete and member management.
func CanEditProject(rel Relation) bool {
	return rel.ResourceOwner
}

func CanDeleteTask(rel Relation) bool {
	return rel.ResourceOwner || rel.WorkspaceOwner
}

// CanAssignResponsible reports whether the caller may set a task's responsible
// party to requested. A nil request clears the assignment, which only the
// workspace owner may do.
func CanAssignResponsible(rel Relation, callerName string, requested *string) bool {
	if rel.WorkspaceOwner {
		return true
	}
	if requested == nil {
		return false
	}
	name := strings.TrimSpace(*requested)
	return name != "" && name == strings.TrimSpace(callerName)
}
