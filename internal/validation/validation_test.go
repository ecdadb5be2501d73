package validation

import "testing"

func TestValidScopeToken(t *testing.T) {
	valids := []string{
		"openid",
		"email",
		"User.Read",
		"read:user",
		"offline_access",
		"https://www.googleapis.com/auth/userinfo.email",
	}
	for _, v := range valids {
		if !ValidScopeToken(v) {
			t.Fatalf("expected valid: %q", v)
		}
	}

	invalids := []string{
		"",
		"bad space",
		`quo"te`,
		`back\slash`,
		"tab\tscope",
		"ñ",
	}
	for _, v := range invalids {
		if ValidScopeToken(v) {
			t.Fatalf("expected invalid: %q", v)
		}
	}
}

func TestValidRedirectURI(t *testing.T) {
	valids := []string{
		"https://app.example.com/cb",
		"http://localhost:3000/auth/callback?x=1",
	}
	for _, v := range valids {
		if !ValidRedirectURI(v) {
			t.Fatalf("expected valid: %q", v)
		}
	}

	invalids := []string{
		"",
		"/relative/cb",
		"javascript:alert(1)",
		"ftp://files.example.com/cb",
		"https://app.example.com/cb#frag",
		"https:///nohost",
		"://broken",
	}
	for _, v := range invalids {
		if ValidRedirectURI(v) {
			t.Fatalf("expected invalid: %q", v)
		}
	}
}
