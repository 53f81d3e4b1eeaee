package source

import (
	"crypto/md5"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/url"
	"regexp"
	"strconv"
	"strings"
)

var md5Pattern = regexp.MustCompile(`^[a-f0-9]{32}$`)

func facebookAvatar(id string, size int) string {
	return fmt.Sprintf("https://graph.facebook.com/%s/picture?width=%d&height=%d",
		url.PathEscape(id), size, size)
}

func googleAvatar(id string, size int) string {
	return fmt.Sprintf("https://profiles.google.com/s2/photos/profile/%s?sz=%d",
		url.PathEscape(id), size)
}

func instagramAvatar(id string, _ int) string {
	return fmt.Sprintf("https://unavatar.io/instagram/%s?fallback=false", url.PathEscape(id))
}

// Only the skypeId field feeds this type, so it resolves through Skype.
func vkontakteAvatar(id string, _ int) string {
	return fmt.Sprintf("https://api.skype.com/users/%s/profile/avatar", url.PathEscape(id))
}

func gravatarAvatar(id string, size int) string {
	return fmt.Sprintf("https://secure.gravatar.com/avatar/%s?s=%d&d=404", gravatarHash(id), size)
}

// gravatarHash keeps ids that are already md5 hashes and hashes emails.
func gravatarHash(id string) string {
	if md5Pattern.MatchString(id) {
		return id
	}
	sum := md5.Sum([]byte(strings.ToLower(strings.TrimSpace(id))))
	return hex.EncodeToString(sum[:])
}

func githubRequest(id string, _ int) string {
	return "https://api.github.com/users/" + url.PathEscape(id)
}

type githubUser struct {
	AvatarURL string `json:"avatar_url"`
}

func githubProcess(payload []byte, size int) (string, error) {
	var user githubUser
	if err := json.Unmarshal(payload, &user); err != nil {
		return "", fmt.Errorf("decode github user: %w", err)
	}
	if user.AvatarURL == "" {
		return "", fmt.Errorf("github user has no avatar_url")
	}
	return user.AvatarURL + "&s=" + strconv.Itoa(size), nil
}

func verbatim(id string, _ int) string {
	return id
}

// Initials returns the upper-cased first letter of each word in name.
// When limit is positive only the first limit words are used.
func Initials(name string, limit int) string {
	words := strings.Fields(name)
	if limit > 0 && limit < len(words) {
		words = words[:limit]
	}

	var b strings.Builder
	for _, w := range words {
		for _, r := range w {
			b.WriteString(strings.ToUpper(string(r)))
			break
		}
	}
	return b.String()
}
