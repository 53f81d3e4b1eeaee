package display

import (
	"errors"
	"testing"
)

func TestOptions_Set(t *testing.T) {
	o := DefaultOptions()

	steps := []struct {
		field, value string
	}{
		{FieldSize, "80"},
		{FieldRound, "false"},
		{FieldCornerRadius, "6"},
		{FieldBorderColor, "#ccc"},
		{FieldInitialsSize, "2"},
		{FieldStyle, "cursor: pointer; color: white"},
	}
	for _, s := range steps {
		if err := o.Set(s.field, s.value); err != nil {
			t.Fatalf("Set(%s, %s) failed: %v", s.field, s.value, err)
		}
	}

	if o.Size != 80 || o.Round || o.CornerRadius != 6 || o.InitialsSize != 2 {
		t.Errorf("unexpected options: %+v", o)
	}
	if o.Style["cursor"] != "pointer" || o.Style["color"] != "white" {
		t.Errorf("style not parsed: %v", o.Style)
	}

	if err := o.Set(FieldSize, ""); err != nil || o.Size != 50 {
		t.Errorf("empty size should restore default, got %d (%v)", o.Size, err)
	}
}

func TestOptions_SetErrors(t *testing.T) {
	o := DefaultOptions()
	if err := o.Set("shadow", "1"); !errors.Is(err, ErrUnknownField) {
		t.Errorf("expected ErrUnknownField, got %v", err)
	}
	if err := o.Set(FieldSize, "-3"); err == nil {
		t.Error("expected error for negative size")
	}
	if err := o.Set(FieldRound, "maybe"); err == nil {
		t.Error("expected error for invalid bool")
	}
	if err := o.Set(FieldStyle, "nocolon"); err == nil {
		t.Error("expected error for malformed style")
	}
}

func TestInitialsStyle(t *testing.T) {
	o := DefaultOptions()
	s := o.InitialsStyle("#f1c40f")

	want := map[string]string{
		"border-radius":    "100%",
		"background-color": "#f1c40f",
		"color":            "#FFF",
		"font":             "16px Helvetica, Arial, sans-serif",
		"line-height":      "50px",
	}
	for k, v := range want {
		if s[k] != v {
			t.Errorf("%s = %q, want %q", k, s[k], v)
		}
	}
	if _, ok := s["border"]; ok {
		t.Error("border should be omitted without borderColor")
	}

	o.BgColor = "#000"
	o.Style = Style{"color": "red"}
	s = o.InitialsStyle("#f1c40f")
	if s["background-color"] != "#000" || s["color"] != "red" {
		t.Errorf("overrides not applied: %v", s)
	}
}

func TestImageStyle(t *testing.T) {
	o := DefaultOptions()
	o.Round = false
	o.CornerRadius = 4
	o.BorderColor = "blue"

	s := o.ImageStyle()
	if s["border-radius"] != "4px" || s["border"] != "1px solid blue" || s["width"] != "50px" {
		t.Errorf("unexpected image style: %v", s)
	}
	if h := o.HostStyle(); h["height"] != "50px" {
		t.Errorf("unexpected host style: %v", h)
	}
}

func TestNormalize(t *testing.T) {
	o := Options{Size: 40}.Normalize()
	if o.Size != 40 || o.TextSizeRatio != 3 || o.FgColor != "#FFF" {
		t.Errorf("normalized = %+v", o)
	}

	o = Options{Size: -1, TextSizeRatio: -2}.Normalize()
	if o.Size != 50 || o.TextSizeRatio != 3 {
		t.Errorf("normalized = %+v", o)
	}
}

func TestInitialsStyle_ZeroRatio(t *testing.T) {
	s := Options{Size: 30}.InitialsStyle("#000")
	if s["font"] != "10px Helvetica, Arial, sans-serif" {
		t.Errorf("font = %q", s["font"])
	}
}
