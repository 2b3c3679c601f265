package daemon

import (
	"path/filepath"
)

// Runtime state lives under <home>/protected alongside the sqlite database.
func protectedDir(home string) string {
	return filepath.Join(home, "protected")
}

func pidPath(home string) string {
	return filepath.Join(protectedDir(home), "metapm.pid")
}

func lockPath(home string) string {
	return filepath.Join(protectedDir(home), "metapm.lock")
}

func addrPath(home string) string {
	return filepath.Join(protectedDir(home), "metapm.addr")
}
