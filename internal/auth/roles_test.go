package auth

import (
	"encoding/json"
	"reflect"
	"testing"
)

func TestGrantedRolesDecodesBothShapes(t *testing.T) {
	tests := []struct {
		name     string
		payload  string
		wantMany bool
		want     []string
	}{
		{name: "object", payload: `{"id":1,"name":"admin"}`, want: []string{"admin"}},
		{name: "array", payload: `[{"id":3,"name":"faculty"},{"id":4,"name":"student"}]`, wantMany: true, want: []string{"faculty", "student"}},
		{name: "empty array", payload: `[]`, wantMany: true, want: nil},
		{name: "null", payload: `null`, want: nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var g GrantedRoles
			if err := json.Unmarshal([]byte(tt.payload), &g); err != nil {
				t.Fatalf("Unmarshal: %v", err)
			}
			if g.IsMany() != tt.wantMany {
				t.Errorf("IsMany() = %v, want %v", g.IsMany(), tt.wantMany)
			}
			var names []string
			for _, r := range g.Roles() {
				names = append(names, r.Name)
			}
			if !reflect.DeepEqual(names, tt.want) {
				t.Errorf("names = %v, want %v", names, tt.want)
			}
		})
	}
}

func TestGrantedRolesScan(t *testing.T) {
	var g GrantedRoles
	if err := g.Scan([]byte(`{"id":2,"name":"hod"}`)); err != nil {
		t.Fatalf("Scan bytes: %v", err)
	}
	if r := g.Roles(); len(r) != 1 || r[0].Name != "hod" {
		t.Errorf("Roles() = %v", r)
	}
	if err := g.Scan(`[{"id":1,"name":"admin"}]`); err != nil {
		t.Fatalf("Scan string: %v", err)
	}
	if !g.IsMany() {
		t.Error("string array scanned as single")
	}
	if err := g.Scan(42); err == nil {
		t.Error("Scan(int) succeeded, want error")
	}
	if err := g.Scan([]byte(`"admin"`)); err == nil {
		t.Error("Scan of bare string succeeded, want error")
	}
}

func TestFlattenRoles(t *testing.T) {
	grants := []RoleGrant{
		{Roles: Many(Role{Name: "faculty"}, Role{Name: "hod"})},
		{Roles: Single(Role{Name: "hod"})},
		{Roles: Single(Role{})},
		{Roles: Single(Role{Name: "admin"})},
	}
	if got, want := FlattenRoles(grants), []string{"faculty", "hod", "admin"}; !reflect.DeepEqual(got, want) {
		t.Errorf("FlattenRoles = %v, want %v", got, want)
	}
	if got := FlattenRoles(nil); got == nil || len(got) != 0 {
		t.Errorf("FlattenRoles(nil) = %#v, want empty slice", got)
	}
}
