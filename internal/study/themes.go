package study

type Theme struct {
	Type      string `json:"type"`
	Value     string `json:"value"`
	TextColor string `json:"textColor,omitempty"`
}

// themes is indexed by Study.Bg.
var themes = []Theme{
	{Type: "color", Value: "#E1EDDE", TextColor: "#578246"},
	{Type: "color", Value: "#FFF1CC", TextColor: "#C18E1B"},
	{Type: "color", Value: "#E0F1F5", TextColor: "#418099"},
	{Type: "color", Value: "#FDE0E9", TextColor: "#FDE0E9"},
	{Type: "image", Value: "bg1.jpg"},
	{Type: "image", Value: "bg2.jpg"},
	{Type: "image", Value: "bg3.jpg"},
	{Type: "image", Value: "bg4.jpg"},
}

func Themes() []Theme {
	out := make([]Theme, len(themes))
	copy(out, themes)
	return out
}
