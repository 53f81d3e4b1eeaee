package policy

import "github.com/zeebo/xxh3"

// DefaultColors is the palette used for initials backgrounds.
var DefaultColors = []string{
	"#1abc9c",
	"#3498db",
	"#f1c40f",
	"#8e44ad",
	"#e74c3c",
	"#d35400",
	"#2c3e50",
	"#7f8c8d",
}

const (
	ColorStrategySum  = "sum"
	ColorStrategyXXH3 = "xxh3"
)

// RandomColor picks a palette color for key. The choice is a pure function
// of the key, so identical initials always get the same color.
func (s *Service) RandomColor(key string) string {
	if key == "" {
		return "transparent"
	}
	return s.colors[s.colorFn(key, len(s.colors))]
}

func colorStrategy(name string) func(string, int) int {
	if name == ColorStrategyXXH3 {
		return hashIndex
	}
	return sumIndex
}

func sumIndex(key string, n int) int {
	sum := 0
	for _, r := range key {
		sum += int(r)
	}
	return sum % n
}

func hashIndex(key string, n int) int {
	return int(xxh3.HashString(key) % uint64(n))
}
