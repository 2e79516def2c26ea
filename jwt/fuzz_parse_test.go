package jwt

import (
	"testing"
	"time"
)

// FuzzParseRefresh exercises the parser with arbitrary token strings.
// Goal: no panics; invalid inputs must be rejected with errors.
func FuzzParseRefresh(f *testing.F) {
	mgr, err := NewManager(testConfig())
	if err != nil {
		f.Fatal(err)
	}

	valid, _, err := mgr.Issue(TypeRefresh, "acct-1", "a@b.com")
	if err != nil {
		f.Fatal(err)
	}
	access, _, err := mgr.Issue(TypeAccess, "acct-1", "a@b.com")
	if err != nil {
		f.Fatal(err)
	}

	f.Add(valid)
	f.Add(access)
	f.Add("")
	f.Add("a.b.c")
	f.Add("eyJhbGciOiJub25lIn0.eyJ0eXBlIjoicmVmcmVzaCJ9.")

	f.Fuzz(func(t *testing.T, token string) {
		claims, err := mgr.Parse(TypeRefresh, token)
		if err == nil {
			if claims == nil || claims.Type != TypeRefresh {
				t.Fatalf("accepted token without refresh claims: %+v", claims)
			}
			if claims.ExpiresAt == nil || claims.ExpiresAt.Time.Before(time.Now().Add(-time.Minute)) {
				t.Fatal("accepted token without valid expiry")
			}
		}
	})
}
