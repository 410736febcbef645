package commands

import "github.com/fatih/color"

type styles struct {
	red, green, gray, bold func(a ...any) string
}

func newStyles(enabled bool) *styles {
	mk := func(attrs ...color.Attribute) func(a ...any) string {
		c := color.New(attrs...)
		if enabled {
			c.EnableColor()
		} else {
			c.DisableColor()
		}
		return c.Sprint
	}
	return &styles{
		red:   mk(color.FgRed),
		green: mk(color.FgGreen),
		gray:  mk(color.FgHiBlack),
		bold:  mk(color.Bold),
	}
}

var (
	colored = newStyles(true)
	plain   = newStyles(false)
)

func stylesFor(s Sender) *styles {
	if s.Color() {
		return colored
	}
	return plain
}
