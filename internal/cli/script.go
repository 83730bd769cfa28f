package cli

import (
	"fmt"
	"io"

	"github.com/alecthomas/chroma/v2/quick"
	"github.com/atotto/clipboard"
)

// HighlightStyle is the chroma style used for scripts.
const HighlightStyle = "monokai"

// Highlight writes script source to w with terminal colors.
func Highlight(w io.Writer, source string) error {
	if err := quick.Highlight(w, source, "javascript", "terminal256", HighlightStyle); err != nil {
		return fmt.Errorf("failed to highlight script: %w", err)
	}
	return nil
}

// CopyToClipboard places text on the system clipboard.
func CopyToClipboard(text string) error {
	if clipboard.Unsupported {
		return fmt.Errorf("clipboard is not supported on this system")
	}
	if err := clipboard.WriteAll(text); err != nil {
		return fmt.Errorf("failed to copy to clipboard: %w", err)
	}
	return nil
}
