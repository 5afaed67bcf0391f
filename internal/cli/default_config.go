package cli

import (
	"os"
	"path/filepath"
)

// pickDefaultConfig tries to make local/dev and container usage easy:
// - if ./config/yuki-frame.ini exists (repo root), use it
// - else fall back to /etc/yuki-frame/yuki-frame.ini
func pickDefaultConfig() string {
	candidate := filepath.Join(".", "config", "yuki-frame.ini")
	if _, err := os.Stat(candidate); err == nil {
		return candidate
	}
	return "/etc/yuki-frame/yuki-frame.ini"
}
