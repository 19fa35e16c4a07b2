package tokenstore

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

const (
	tokenPrefix  = "[REDACTED_"
	tokenSuffix  = "]"
	policySuffix = ":policy"
)

// TokenPattern matches tokens embedded in redacted text.
var TokenPattern = regexp.MustCompile(`\[REDACTED_[a-z0-9]+\]`)

// NewToken mints a token of the form [REDACTED_<16 lowercase hex>].
func NewToken() (string, error) {
	var b [8]byte
	if _, err := rand.Read(b[:]); err != nil {
		return "", fmt.Errorf("failed to generate token: %w", err)
	}
	return tokenPrefix + hex.EncodeToString(b[:]) + tokenSuffix, nil
}

// FindTokens returns every token occurrence in text, in order, duplicates kept.
func FindTokens(text string) []string {
	return TokenPattern.FindAllString(text, -1)
}

// PolicyKey is the key holding a token's policy metadata.
func PolicyKey(token string) string {
	return token + policySuffix
}

// EncodePolicyMeta renders metadata as "<context>:<true|false>".
func EncodePolicyMeta(m PolicyMeta) string {
	return m.Context + ":" + strconv.FormatBool(m.RestorationAllowed)
}

// DecodePolicyMeta splits on the last colon so contexts may contain colons.
// The boolean is compared case-insensitively; anything but "true" is false.
func DecodePolicyMeta(v string) (PolicyMeta, error) {
	i := strings.LastIndex(v, ":")
	if i < 0 {
		return PolicyMeta{}, fmt.Errorf("malformed policy metadata %q", v)
	}
	return PolicyMeta{
		Context:            v[:i],
		RestorationAllowed: strings.EqualFold(v[i+1:], "true"),
	}, nil
}
