package domain

import "testing"

func TestImplies(t *testing.T) {
	cases := []struct {
		name     string
		assigned Role
		required Role
		want     bool
	}{
		{"admin implies read", RoleAdmin, RoleRead, true},
		{"admin implies promote", RoleAdmin, RolePromote, true},
		{"write implies read", RoleWrite, RoleRead, true},
		{"read does not imply write", RoleRead, RoleWrite, false},
		{"promote does not imply write", RolePromote, RoleWrite, false},
		{"every role implies itself", RoleRead, RoleRead, true},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			if got := Implies(c.assigned, c.required); got != c.want {
				t.Errorf("Implies(%s, %s) = %v, want %v", c.assigned, c.required, got, c.want)
			}
		})
	}
}

func TestHasRole(t *testing.T) {
	scopes := []RepoScope{
		{RepoKey: "libs-release", Role: RoleWrite},
		{RepoKey: "*", Role: RoleRead},
	}

	cases := []struct {
		name     string
		repoKey  string
		required Role
		want     bool
	}{
		{"exact repo match satisfies write", "libs-release", RoleWrite, true},
		{"exact repo match does not satisfy admin", "libs-release", RoleAdmin, false},
		{"wildcard grant satisfies read on unrelated repo", "other-repo", RoleRead, true},
		{"wildcard read does not satisfy write on unrelated repo", "other-repo", RoleWrite, false},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			if got := HasRole(scopes, c.repoKey, c.required); got != c.want {
				t.Errorf("HasRole(%s, %s) = %v, want %v", c.repoKey, c.required, got, c.want)
			}
		})
	}
}

func TestParseRole(t *testing.T) {
	if _, ok := ParseRole("WRITE"); !ok {
		t.Error("expected uppercase WRITE to parse")
	}

	if _, ok := ParseRole("superuser"); ok {
		t.Error("expected unknown role to fail to parse")
	}
}
