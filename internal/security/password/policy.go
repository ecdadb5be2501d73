package password

import (
	"bufio"
	"fmt"
	"io"
	"strings"
	"unicode"
)

type Policy struct {
	MinLength     int
	RequireUpper  bool
	RequireLower  bool
	RequireDigit  bool
	RequireSymbol bool

	// Blacklist de contraseñas comunes (lowercase). nil = sin chequeo.
	Blacklist map[string]struct{}
}

var DefaultPolicy = Policy{MinLength: 10, RequireLower: true, RequireDigit: true}

// PolicyError lista los motivos de rechazo (too_short, missing_digit, ...).
type PolicyError struct {
	Reasons []string
}

func (e *PolicyError) Error() string {
	return "password: policy violation: " + strings.Join(e.Reasons, ",")
}

// Check devuelve *PolicyError si s no cumple.
func (p Policy) Check(s string) error {
	var reasons []string
	if len([]rune(s)) < p.MinLength {
		reasons = append(reasons, "too_short")
	}
	var hasU, hasL, hasD, hasS bool
	for _, r := range s {
		switch {
		case unicode.IsUpper(r):
			hasU = true
		case unicode.IsLower(r):
			hasL = true
		case unicode.IsDigit(r):
			hasD = true
		case unicode.IsPunct(r) || unicode.IsSymbol(r):
			hasS = true
		}
	}
	if p.RequireUpper && !hasU {
		reasons = append(reasons, "missing_upper")
	}
	if p.RequireLower && !hasL {
		reasons = append(reasons, "missing_lower")
	}
	if p.RequireDigit && !hasD {
		reasons = append(reasons, "missing_digit")
	}
	if p.RequireSymbol && !hasS {
		reasons = append(reasons, "missing_symbol")
	}
	if _, ok := p.Blacklist[strings.ToLower(strings.TrimSpace(s))]; ok {
		reasons = append(reasons, "blacklisted")
	}
	if len(reasons) > 0 {
		return &PolicyError{Reasons: reasons}
	}
	return nil
}

// ReadBlacklist carga una contraseña por línea; ignora vacías y comentarios (#).
func ReadBlacklist(r io.Reader) (map[string]struct{}, error) {
	out := map[string]struct{}{}
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		s := strings.ToLower(strings.TrimSpace(sc.Text()))
		if s != "" && !strings.HasPrefix(s, "#") {
			out[s] = struct{}{}
		}
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("password: read blacklist: %w", err)
	}
	return out, nil
}
