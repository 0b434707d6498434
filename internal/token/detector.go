package token

import (
	"encoding/base64"
	"encoding/json"
	"net/http"
	"strings"
)

// Kind classifies an inbound bearer credential.
type Kind string

const (
	// KindPlatform means the credential looks like a token this platform
	// minted. This is a routing hint from an unverified payload, not proof;
	// the caller must still run Verify.
	KindPlatform Kind = "platform"
	// KindFederated means a well-formed JWT issued elsewhere; verification
	// is delegated to the identity backend.
	KindFederated Kind = "federated"
	// KindNone means no usable credential was presented.
	KindNone Kind = "none"
)

// Classification is the detector outcome.
type Classification struct {
	Token string
	Kind  Kind
}

// Classify inspects the request's Authorization header and routes the
// credential to the right verifier. It never fails: malformed input of any
// shape degrades to KindNone.
func Classify(r *http.Request) Classification {
	return ClassifyCredential(BearerCredential(r))
}

// BearerCredential extracts the bearer value from the Authorization header,
// or "" when the header is absent or uses another scheme.
func BearerCredential(r *http.Request) string {
	header := r.Header.Get("Authorization")
	scheme, credential, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(credential)
}

// ClassifyCredential classifies a raw bearer value. A credential counts as a
// JWT only if it has exactly three dot-separated segments and its payload
// segment decodes to JSON; the issuer/audience peek below reads that payload
// without checking the signature.
func ClassifyCredential(credential string) Classification {
	if credential == "" {
		return Classification{Kind: KindNone}
	}
	segments := strings.Split(credential, ".")
	if len(segments) != 3 {
		return Classification{Kind: KindNone}
	}
	payload, err := base64.RawURLEncoding.DecodeString(segments[1])
	if err != nil {
		return Classification{Kind: KindNone}
	}
	var peek struct {
		Issuer   string          `json:"iss"`
		Audience json.RawMessage `json:"aud"`
	}
	if err := json.Unmarshal(payload, &peek); err != nil {
		return Classification{Kind: KindNone}
	}
	if peek.Issuer == Issuer && audienceContains(peek.Audience, Audience) {
		return Classification{Token: credential, Kind: KindPlatform}
	}
	return Classification{Token: credential, Kind: KindFederated}
}

// audienceContains handles both string and string-array aud encodings.
func audienceContains(raw json.RawMessage, want string) bool {
	if len(raw) == 0 {
		return false
	}
	var single string
	if err := json.Unmarshal(raw, &single); err == nil {
		return single == want
	}
	var many []string
	if err := json.Unmarshal(raw, &many); err == nil {
		for _, a := range many {
			if a == want {
				return true
			}
		}
	}
	return false
}
