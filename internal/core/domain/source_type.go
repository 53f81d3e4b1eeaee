package domain

// SourceType identifies where an avatar candidate comes from.
type SourceType string

const (
	SourceFacebook  SourceType = "facebook"
	SourceGoogle    SourceType = "google"
	SourceInstagram SourceType = "instagram"
	SourceVkontakte SourceType = "vkontakte"
	SourceGravatar  SourceType = "gravatar"
	SourceGitHub    SourceType = "github"
	SourceCustom    SourceType = "custom"
	SourceInitials  SourceType = "initials"
	SourceValue     SourceType = "value"
)

// DefaultSourceOrder is the priority used when no order is configured.
// Image sources come before the generated text fallbacks.
var DefaultSourceOrder = []SourceType{
	SourceFacebook,
	SourceGoogle,
	SourceInstagram,
	SourceVkontakte,
	SourceGravatar,
	SourceGitHub,
	SourceCustom,
	SourceInitials,
	SourceValue,
}

// Valid reports whether t is one of the known source types.
func (t SourceType) Valid() bool {
	for _, s := range DefaultSourceOrder {
		if s == t {
			return true
		}
	}
	return false
}

// Kind tags how a source produces its renderable value.
type Kind int

const (
	// KindSync sources build their URL or text locally.
	KindSync Kind = iota
	// KindAsync sources need a network round trip before rendering.
	KindAsync
)

func (k Kind) String() string {
	switch k {
	case KindSync:
		return "sync"
	case KindAsync:
		return "async"
	default:
		return "unknown"
	}
}

// Configuration field names accepted on an avatar instance.
const (
	FieldFacebookID  = "facebookId"
	FieldGoogleID    = "googleId"
	FieldInstagramID = "instagramId"
	FieldSkypeID     = "skypeId"
	FieldGravatarID  = "gravatarId"
	FieldGitHubID    = "githubId"
	FieldSrc         = "src"
	FieldName        = "name"
	FieldValue       = "value"
)

// SourceFields lists the source fields in a fixed order so that callers
// building changes from unordered input (query strings, JSON objects)
// produce the same candidate insertion order every time.
var SourceFields = []string{
	FieldFacebookID,
	FieldGoogleID,
	FieldInstagramID,
	FieldSkypeID,
	FieldGravatarID,
	FieldGitHubID,
	FieldSrc,
	FieldName,
	FieldValue,
}

// FieldToSource maps a configuration field to its source type.
// skypeId feeds the vkontakte type for compatibility with older clients.
var FieldToSource = map[string]SourceType{
	FieldFacebookID:  SourceFacebook,
	FieldGoogleID:    SourceGoogle,
	FieldInstagramID: SourceInstagram,
	FieldSkypeID:     SourceVkontakte,
	FieldGravatarID:  SourceGravatar,
	FieldGitHubID:    SourceGitHub,
	FieldSrc:         SourceCustom,
	FieldName:        SourceInitials,
	FieldValue:       SourceValue,
}
