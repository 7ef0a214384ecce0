package lead

import "math/rand"

// Synthetic identities live in [2^60, 2^62), far above any chat-platform
// user id (Telegram ids stay below 2^52). No uniqueness check is done at
// allocation time; with 3*2^60 possible values the birthday bound at a
// million records is about 1.4e-7, which we accept.
const (
	syntheticBase int64 = 1 << 60
	syntheticSpan int64 = 3 << 60
)

// AllocateIdentity mints a synthetic subject identifier for submissions
// that carry no chat identity and matched no existing contact.
func AllocateIdentity() int64 {
	return syntheticBase + rand.Int63n(syntheticSpan)
}

// IsSynthetic reports whether an identity was minted by AllocateIdentity
// rather than supplied by a chat platform.
func IsSynthetic(id int64) bool {
	return id >= syntheticBase
}
