package hashtag

import "strings"

// Key is a navigation key the suggestion popup reacts to.
type Key int

const (
	KeyNone Key = iota
	KeyUp
	KeyDown
	KeyEscape
	KeyEnter
	KeyTab
)

var keyNames = map[string]Key{
	"up":        KeyUp,
	"arrowup":   KeyUp,
	"down":      KeyDown,
	"arrowdown": KeyDown,
	"esc":       KeyEscape,
	"escape":    KeyEscape,
	"enter":     KeyEnter,
	"return":    KeyEnter,
	"tab":       KeyTab,
}

// ParseKey maps DOM key names ("ArrowDown") and terminal names ("down") to a
// Key. Unknown names yield KeyNone.
func ParseKey(name string) Key {
	return keyNames[strings.ToLower(strings.TrimSpace(name))]
}

func (k Key) String() string {
	switch k {
	case KeyUp:
		return "up"
	case KeyDown:
		return "down"
	case KeyEscape:
		return "escape"
	case KeyEnter:
		return "enter"
	case KeyTab:
		return "tab"
	default:
		return "none"
	}
}
