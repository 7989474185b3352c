package pool

import "strings"

// RoleMapping maps directory group names to local role names.
type RoleMapping map[string]string

// ParseRoleMapping parses the delimited mapping string: fields separated
// by commas, each field optionally split into key=value. A bare field
// with no "=" maps to itself, so "admin=root,dev" yields
// {admin: root, dev: dev}.
func ParseRoleMapping(mapping string) RoleMapping {
	roles := make(RoleMapping)
	if mapping == "" {
		return roles
	}

	for _, field := range strings.Split(mapping, ",") {
		key, value, found := strings.Cut(field, "=")
		if !found {
			roles[field] = field
		} else {
			roles[key] = value
		}
	}

	return roles
}
