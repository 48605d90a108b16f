package auth

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Role is an entry of the static role reference set.
type Role struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

// GrantedRoles is the role side of a single user_roles grant. Depending on join
// cardinality the store hands back either one role object or an array of them;
// both shapes are normalized here so callers only see Roles().
type GrantedRoles struct {
	many   bool
	single Role
	list   []Role
}

// Single wraps a grant that resolved to exactly one role.
func Single(r Role) GrantedRoles { return GrantedRoles{single: r} }

// Many wraps a grant that resolved to a list of roles.
func Many(rs ...Role) GrantedRoles { return GrantedRoles{many: true, list: rs} }

// IsMany reports which shape the grant arrived in.
func (g GrantedRoles) IsMany() bool { return g.many }

// Roles returns the roles carried by the grant in order.
func (g GrantedRoles) Roles() []Role {
	if g.many {
		return g.list
	}
	if g.single.Name == "" {
		return nil
	}
	return []Role{g.single}
}

// UnmarshalJSON accepts a role object, an array of role objects, or null.
func (g *GrantedRoles) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	switch {
	case len(data) == 0 || bytes.Equal(data, []byte("null")):
		*g = GrantedRoles{}
		return nil
	case data[0] == '[':
		var rs []Role
		if err := json.Unmarshal(data, &rs); err != nil {
			return err
		}
		*g = Many(rs...)
		return nil
	case data[0] == '{':
		var r Role
		if err := json.Unmarshal(data, &r); err != nil {
			return err
		}
		*g = Single(r)
		return nil
	}
	return fmt.Errorf("unexpected role payload %q", data)
}

// Scan implements sql.Scanner for json/jsonb columns.
func (g *GrantedRoles) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		*g = GrantedRoles{}
		return nil
	case []byte:
		return g.UnmarshalJSON(v)
	case string:
		return g.UnmarshalJSON([]byte(v))
	}
	return fmt.Errorf("cannot scan %T into GrantedRoles", src)
}

// RoleGrant is one row of a user's role assignments.
type RoleGrant struct {
	RoleID int
	Roles  GrantedRoles
}

// FlattenRoles collapses grants into an ordered, de-duplicated list of role
// names. It never returns nil.
func FlattenRoles(grants []RoleGrant) []string {
	out := []string{}
	seen := make(map[string]struct{})
	for _, g := range grants {
		for _, r := range g.Roles.Roles() {
			if r.Name == "" {
				continue
			}
			if _, dup := seen[r.Name]; dup {
				continue
			}
			seen[r.Name] = struct{}{}
			out = append(out, r.Name)
		}
	}
	return out
}
