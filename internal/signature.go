package cwrap

import (
	"fmt"
	"regexp"
	"strings"
)

var (
	signaturePattern = regexp.MustCompile(`^([a-zA-Z][a-zA-Z0-9_*]*)\s+([a-zA-Z]\w*)\s*\(([a-zA-Z0-9_*,\s]*)\)$`)
	typeTokenPattern = regexp.MustCompile(`^[a-zA-Z][a-zA-Z0-9_*]*$`)
)

// Signature is a parsed C function declaration.
type Signature struct {
	ReturnType string
	Name       string
	Params     []string
}

// ParseSignature parses declarations of the form "int add(int, int)". Type
// names are not checked against a registry.
func ParseSignature(text string) (*Signature, error) {
	match := signaturePattern.FindStringSubmatch(strings.TrimSpace(text))
	if match == nil {
		return nil, fmt.Errorf("%w: %q", ErrMalformedSignature, text)
	}

	sig := &Signature{
		ReturnType: match[1],
		Name:       match[2],
		Params:     []string{},
	}

	// A single blank entry means no parameters.
	if strings.TrimSpace(match[3]) == "" {
		return sig, nil
	}

	for i, param := range strings.Split(match[3], ",") {
		param = strings.TrimSpace(param)
		if !typeTokenPattern.MatchString(param) {
			return nil, fmt.Errorf("%w: %q: parameter %d is not a type name", ErrMalformedSignature, text, i)
		}
		sig.Params = append(sig.Params, param)
	}

	return sig, nil
}

func (s *Signature) String() string {
	return fmt.Sprintf("%s %s(%s)", s.ReturnType, s.Name, strings.Join(s.Params, ", "))
}
