package ml

import "github.com/shuv1824/kisan/internal/services/vision"

// Pattern describes how a disease class tends to look on a leaf.
type Pattern struct {
	Name        string
	ColorRanges map[string]vision.HSVRange
}

func hsv(lo, hi [3]uint8) vision.HSVRange {
	return vision.HSVRange{Lo: lo, Hi: hi}
}

// Patterns is the image class vocabulary with its characteristic colours.
var Patterns = []Pattern{
	{
		Name: "blast",
		ColorRanges: map[string]vision.HSVRange{
			"brown_spots":   hsv([3]uint8{10, 50, 20}, [3]uint8{20, 255, 200}),
			"white_centers": hsv([3]uint8{0, 0, 180}, [3]uint8{180, 30, 255}),
		},
	},
	{
		Name: "rust",
		ColorRanges: map[string]vision.HSVRange{
			"orange_rust":   hsv([3]uint8{5, 100, 100}, [3]uint8{25, 255, 255}),
			"reddish_brown": hsv([3]uint8{0, 100, 100}, [3]uint8{10, 255, 200}),
		},
	},
	{
		Name: "blight",
		ColorRanges: map[string]vision.HSVRange{
			"dark_spots": hsv([3]uint8{0, 0, 0}, [3]uint8{180, 255, 100}),
			"yellowing":  hsv([3]uint8{20, 100, 100}, [3]uint8{30, 255, 255}),
		},
	},
	{
		Name: "wilt",
		ColorRanges: map[string]vision.HSVRange{
			"yellowing": hsv([3]uint8{20, 50, 50}, [3]uint8{30, 255, 200}),
			"browning":  hsv([3]uint8{10, 100, 50}, [3]uint8{20, 255, 150}),
		},
	},
	{
		Name: "powdery_mildew",
		ColorRanges: map[string]vision.HSVRange{
			"white_powder": hsv([3]uint8{0, 0, 200}, [3]uint8{180, 30, 255}),
			"gray_patches": hsv([3]uint8{0, 0, 100}, [3]uint8{180, 50, 180}),
		},
	},
	{
		Name: "bacterial_spot",
		ColorRanges: map[string]vision.HSVRange{
			"dark_spots":   hsv([3]uint8{0, 100, 0}, [3]uint8{10, 255, 100}),
			"yellow_halos": hsv([3]uint8{25, 100, 100}, [3]uint8{35, 255, 255}),
		},
	},
}

// PatternNames lists the image classes in declaration order.
func PatternNames() []string {
	names := make([]string, len(Patterns))
	for i, p := range Patterns {
		names[i] = p.Name
	}
	return names
}
