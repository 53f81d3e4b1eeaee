// Package display computes the style attributes of an avatar from its
// display options. It produces data only; drawing is left to the client.
package display

import (
	"errors"
	"fmt"
	"maps"
	"strconv"
	"strings"
)

// Display option field names.
const (
	FieldRound         = "round"
	FieldSize          = "size"
	FieldTextSizeRatio = "textSizeRatio"
	FieldBgColor       = "bgColor"
	FieldFgColor       = "fgColor"
	FieldBorderColor   = "borderColor"
	FieldCornerRadius  = "cornerRadius"
	FieldStyle         = "style"
	FieldInitialsSize  = "initialsSize"
	FieldPlaceholder   = "placeholder"
)

// Fields lists every display option field.
var Fields = []string{
	FieldRound,
	FieldSize,
	FieldTextSizeRatio,
	FieldBgColor,
	FieldFgColor,
	FieldBorderColor,
	FieldCornerRadius,
	FieldStyle,
	FieldInitialsSize,
	FieldPlaceholder,
}

// ErrUnknownField is returned by Set for names that are not display options.
var ErrUnknownField = errors.New("unknown display field")

// Style maps CSS property names to values.
type Style map[string]string

// Options are the presentation inputs of one avatar.
type Options struct {
	Round         bool
	Size          int
	TextSizeRatio int
	BgColor       string
	FgColor       string
	BorderColor   string
	CornerRadius  int
	Style         Style
	InitialsSize  int
	Placeholder   string
}

// DefaultOptions mirrors the defaults of the avatar component.
func DefaultOptions() Options {
	return Options{
		Round:         true,
		Size:          50,
		TextSizeRatio: 3,
		FgColor:       "#FFF",
	}
}

// Normalize replaces a non-positive size or text size ratio with the
// default, so partially filled options are safe to render.
func (o Options) Normalize() Options {
	def := DefaultOptions()
	if o.Size <= 0 {
		o.Size = def.Size
	}
	if o.TextSizeRatio <= 0 {
		o.TextSizeRatio = def.TextSizeRatio
	}
	if o.FgColor == "" {
		o.FgColor = def.FgColor
	}
	return o
}

// IsField reports whether name is a display option.
func IsField(name string) bool {
	for _, f := range Fields {
		if f == name {
			return true
		}
	}
	return false
}

// Set applies one field from its string form. An empty value restores the
// default.
func (o *Options) Set(field, value string) error {
	def := DefaultOptions()
	var err error
	switch field {
	case FieldRound:
		o.Round = def.Round
		if value != "" {
			o.Round, err = strconv.ParseBool(value)
		}
	case FieldSize:
		o.Size, err = positiveInt(value, def.Size)
	case FieldTextSizeRatio:
		o.TextSizeRatio, err = positiveInt(value, def.TextSizeRatio)
	case FieldBgColor:
		o.BgColor = value
	case FieldFgColor:
		o.FgColor = value
		if value == "" {
			o.FgColor = def.FgColor
		}
	case FieldBorderColor:
		o.BorderColor = value
	case FieldCornerRadius:
		o.CornerRadius, err = nonNegativeInt(value)
	case FieldStyle:
		o.Style, err = ParseStyle(value)
	case FieldInitialsSize:
		o.InitialsSize, err = nonNegativeInt(value)
	case FieldPlaceholder:
		o.Placeholder = value
	default:
		return fmt.Errorf("%w: %s", ErrUnknownField, field)
	}
	if err != nil {
		return fmt.Errorf("invalid %s %q: %w", field, value, err)
	}
	return nil
}

func positiveInt(value string, def int) (int, error) {
	if value == "" {
		return def, nil
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return def, err
	}
	if n <= 0 {
		return def, fmt.Errorf("must be positive")
	}
	return n, nil
}

func nonNegativeInt(value string) (int, error) {
	if value == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, err
	}
	if n < 0 {
		return 0, fmt.Errorf("must not be negative")
	}
	return n, nil
}

// ParseStyle reads "prop: value; prop: value" declarations.
func ParseStyle(s string) (Style, error) {
	if strings.TrimSpace(s) == "" {
		return nil, nil
	}
	style := Style{}
	for _, decl := range strings.Split(s, ";") {
		decl = strings.TrimSpace(decl)
		if decl == "" {
			continue
		}
		prop, val, ok := strings.Cut(decl, ":")
		if !ok || strings.TrimSpace(prop) == "" {
			return nil, fmt.Errorf("malformed declaration %q", decl)
		}
		style[strings.TrimSpace(prop)] = strings.TrimSpace(val)
	}
	return style, nil
}

func (o Options) border() string {
	if o.BorderColor == "" {
		return ""
	}
	return "1px solid " + o.BorderColor
}

func (o Options) px(n int) string {
	return strconv.Itoa(n) + "px"
}

// InitialsStyle is the style of a text avatar. background is used when no
// background color is configured.
func (o Options) InitialsStyle(background string) Style {
	radius := o.px(o.CornerRadius)
	if o.Round {
		radius = "100%"
	}
	bg := o.BgColor
	if bg == "" {
		bg = background
	}
	ratio := o.TextSizeRatio
	if ratio <= 0 {
		ratio = DefaultOptions().TextSizeRatio
	}

	s := Style{
		"text-align":       "center",
		"border-radius":    radius,
		"text-transform":   "uppercase",
		"color":            o.FgColor,
		"background-color": bg,
		"font":             o.px(o.Size/ratio) + " Helvetica, Arial, sans-serif",
		"line-height":      o.px(o.Size),
	}
	if b := o.border(); b != "" {
		s["border"] = b
	}
	maps.Copy(s, o.Style)
	return s
}

// ImageStyle is the style of an image avatar.
func (o Options) ImageStyle() Style {
	radius := o.px(o.CornerRadius)
	if o.Round {
		radius = "50%"
	}

	s := Style{
		"max-width":     "100%",
		"border-radius": radius,
		"width":         o.px(o.Size),
		"height":        o.px(o.Size),
	}
	if b := o.border(); b != "" {
		s["border"] = b
	}
	maps.Copy(s, o.Style)
	return s
}

// HostStyle is the style of the avatar container.
func (o Options) HostStyle() Style {
	return Style{
		"width":  o.px(o.Size),
		"height": o.px(o.Size),
	}
}
