package source

import (
	"fmt"

	"github.com/vietddude/avatar/internal/core/domain"
)

// Factory builds sources from a type and identifier.
type Factory struct{}

// NewFactory returns a Factory.
func NewFactory() *Factory {
	return &Factory{}
}

// NewInstance builds the source for t. An empty id returns ErrEmptySourceID.
// An unknown type is a programming error and panics.
func (f *Factory) NewInstance(t domain.SourceType, id string) (*Source, error) {
	if id == "" {
		return nil, fmt.Errorf("%s: %w", t, ErrEmptySourceID)
	}

	s := &Source{sourceType: t, sourceID: id, kind: domain.KindSync}
	switch t {
	case domain.SourceFacebook:
		s.avatar = facebookAvatar
	case domain.SourceGoogle:
		s.avatar = googleAvatar
	case domain.SourceInstagram:
		s.avatar = instagramAvatar
	case domain.SourceVkontakte:
		s.avatar = vkontakteAvatar
	case domain.SourceGravatar:
		s.avatar = gravatarAvatar
	case domain.SourceGitHub:
		s.kind = domain.KindAsync
		s.avatar = githubRequest
		s.process = githubProcess
	case domain.SourceCustom, domain.SourceValue:
		s.avatar = verbatim
	case domain.SourceInitials:
		s.avatar = Initials
	default:
		panic(fmt.Sprintf("source: unknown source type %q", t))
	}
	return s, nil
}
