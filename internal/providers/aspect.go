package providers

// Orientation is an aspect-ratio bucket shared by all image providers.
type Orientation int

const (
	Square Orientation = iota
	Landscape
	Portrait
)

func (o Orientation) String() string {
	switch o {
	case Landscape:
		return "landscape"
	case Portrait:
		return "portrait"
	default:
		return "square"
	}
}

// Bucket classifies width x height. A side must exceed the other by threshold
// (e.g. 1.3) to count as landscape or portrait. Non-positive dimensions are square.
// Each provider passes its own threshold.
func Bucket(width, height int, threshold float64) Orientation {
	if width <= 0 || height <= 0 {
		return Square
	}
	w, h := float64(width), float64(height)
	switch {
	case w > h*threshold:
		return Landscape
	case h > w*threshold:
		return Portrait
	default:
		return Square
	}
}
