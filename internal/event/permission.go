package event

import (
	"strconv"
)

// Checker decides whether an event passes a permission gate
type Checker func(ev Event) bool

func memberPermission(ev Event) (Permission, bool) {
	g, ok := ev.(*GroupMessage)
	if !ok {
		return "", false
	}
	return g.Sender.Permission, true
}

// GroupMember passes plain members of a group
func GroupMember(ev Event) bool {
	p, ok := memberPermission(ev)
	return ok && p == PermissionMember
}

// GroupAdmin passes group administrators
func GroupAdmin(ev Event) bool {
	p, ok := memberPermission(ev)
	return ok && p == PermissionAdministrator
}

// GroupOwner passes the group owner
func GroupOwner(ev Event) bool {
	p, ok := memberPermission(ev)
	return ok && p == PermissionOwner
}

// GroupAdmins passes administrators and the owner
func GroupAdmins(ev Event) bool {
	return GroupAdmin(ev) || GroupOwner(ev)
}

// GroupOwnerOrSuperuser passes the group owner or a group member listed in
// superusers.
func GroupOwnerOrSuperuser(superusers []string) Checker {
	set := make(map[string]struct{}, len(superusers))
	for _, s := range superusers {
		set[s] = struct{}{}
	}
	return func(ev Event) bool {
		g, ok := ev.(*GroupMessage)
		if !ok {
			return false
		}
		if g.Sender.Permission == PermissionOwner {
			return true
		}
		_, su := set[strconv.FormatInt(g.Sender.ID, 10)]
		return su
	}
}
