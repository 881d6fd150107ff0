package enums

import "testing"

func TestParseUserRole(t *testing.T) {
	tests := []struct {
		in      string
		want    UserRole
		wantErr bool
	}{
		{in: "player", want: UserRolePlayer},
		{in: " Venue_Owner ", want: UserRoleVenueOwner},
		{in: "ADMIN", want: UserRoleAdmin},
		{in: "owner", wantErr: true},
		{in: "", wantErr: true},
	}

	for _, tt := range tests {
		got, err := ParseUserRole(tt.in)
		if tt.wantErr {
			if err == nil {
				t.Fatalf("ParseUserRole(%q) expected error", tt.in)
			}
			continue
		}
		if err != nil {
			t.Fatalf("ParseUserRole(%q) unexpected error: %v", tt.in, err)
		}
		if got != tt.want {
			t.Fatalf("ParseUserRole(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestUserRoleIsValid(t *testing.T) {
	if UserRole("superuser").IsValid() {
		t.Fatal("unexpected valid role")
	}
	if !UserRoleVenueOwner.IsValid() {
		t.Fatal("venue_owner should be valid")
	}
}

func TestParseAuthProvider(t *testing.T) {
	if p, err := ParseAuthProvider("google"); err != nil || p != AuthProviderGoogle {
		t.Fatalf("expected google provider, got %q err=%v", p, err)
	}
	if _, err := ParseAuthProvider("facebook"); err == nil {
		t.Fatal("expected unsupported provider to fail")
	}
}
