package notification

import "context"

// ChallengeProvider obtains an anti-abuse challenge token for an action.
// Returning ok=false is normal and never blocks dispatch.
type ChallengeProvider interface {
	ObtainToken(ctx context.Context, action string) (token string, ok bool)
}

// NoChallenge is used when challenge verification is bypassed, as in
// development builds.
type NoChallenge struct{}

func (NoChallenge) ObtainToken(context.Context, string) (string, bool) {
	return "", false
}

// StaticChallenge always returns the same token.
type StaticChallenge string

func (s StaticChallenge) ObtainToken(context.Context, string) (string, bool) {
	return string(s), s != ""
}

// ChallengeFunc adapts a function to ChallengeProvider.
type ChallengeFunc func(ctx context.Context, action string) (string, bool)

func (f ChallengeFunc) ObtainToken(ctx context.Context, action string) (string, bool) {
	return f(ctx, action)
}

// challengeAction names the action a token is requested for, e.g. "contact_form".
func challengeAction(c Category) string {
	b := []byte(c)
	for i, ch := range b {
		if ch == '-' {
			b[i] = '_'
		}
	}
	return string(b) + "_form"
}
