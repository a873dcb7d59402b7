package geospatial

// Palette is the fixed set of team hues.
var Palette = [8]string{
	"#e6194b", // red
	"#3cb44b", // green
	"#4363d8", // blue
	"#f58231", // orange
	"#911eb4", // purple
	"#42d4f4", // cyan
	"#f032e6", // magenta
	"#9a6324", // brown
}

// ColorFromID maps an identifier to a palette entry. The hash accumulates
// character codes with a shift step in 32-bit arithmetic, so identical ids
// always share a color and different ids may collide.
func ColorFromID(id string) string {
	var h int32
	for _, r := range id {
		h = int32(r) + (h << 5) - h
	}
	idx := int64(h)
	if idx < 0 {
		idx = -idx
	}
	return Palette[idx%int64(len(Palette))]
}
