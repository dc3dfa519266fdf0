package cart

import (
	"path/filepath"
	"strings"
)

const (
	CartExt      = ".p8"
	CompanionExt = ".lua"
)

// IsCart reports whether path names a text cartridge.
func IsCart(path string) bool {
	return filepath.Ext(path) == CartExt
}

// IsCompanion reports whether path names a Lua companion source.
func IsCompanion(path string) bool {
	return filepath.Ext(path) == CompanionExt
}

// CompanionPath maps "game.p8" to "game.lua".
func CompanionPath(cartPath string) string {
	return strings.TrimSuffix(cartPath, filepath.Ext(cartPath)) + CompanionExt
}

// CartPath maps "game.lua" to "game.p8".
func CartPath(luaPath string) string {
	return strings.TrimSuffix(luaPath, filepath.Ext(luaPath)) + CartExt
}

// BackupPath maps "game.p8" to "game.p8.bak" for suffix ".bak".
func BackupPath(cartPath, suffix string) string {
	if suffix == "" {
		suffix = ".bak"
	}
	return cartPath + suffix
}
