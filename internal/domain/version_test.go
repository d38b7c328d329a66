package domain

import "testing"

func TestNormalizeIdentity(t *testing.T) {
	pkgType, namespace, name, version := NormalizeIdentity(" NPM ", "ACME", "  Widget  ", " 1.0.0 ")

	if pkgType != "npm" || namespace != "acme" || name != "widget" || version != "1.0.0" {
		t.Errorf("got (%q, %q, %q, %q)", pkgType, namespace, name, version)
	}
}

func TestPackageVersionMutable(t *testing.T) {
	cases := []struct {
		state VersionState
		want  bool
	}{
		{VersionStateDraft, true},
		{VersionStatePublished, false},
		{VersionStateQuarantined, false},
		{VersionStateTombstoned, false},
	}

	for _, c := range cases {
		v := PackageVersion{State: c.state}
		if got := v.Mutable(); got != c.want {
			t.Errorf("Mutable() for state %s = %v, want %v", c.state, got, c.want)
		}
	}
}
