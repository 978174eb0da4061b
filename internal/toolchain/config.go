package toolchain

import (
	"os"
	"os/exec"
	"strconv"
)

// Config selects the external tools and where their artifacts go.
type Config struct {
	CC      string // C compiler producing relocatable objects
	Objcopy string // binary extraction tool
	WorkDir string // parent of per-attempt temp dirs; "" means os.TempDir()

	// KeepArtifacts leaves the per-attempt directory in place for inspection.
	KeepArtifacts bool

	// Check parses the emitted C in-process before invoking CC.
	Check bool

	// ExtraFlags are appended to the compiler command line.
	ExtraFlags []string
}

// DefaultConfig uses cc and objcopy from PATH.
func DefaultConfig() Config {
	return Config{CC: "cc", Objcopy: "objcopy"}
}

// ConfigFromEnv starts from DefaultConfig and applies LOOPJIT_CC,
// LOOPJIT_OBJCOPY, LOOPJIT_WORKDIR and LOOPJIT_KEEP.
func ConfigFromEnv() Config {
	cfg := DefaultConfig()
	if v := os.Getenv("LOOPJIT_CC"); v != "" {
		cfg.CC = v
	}
	if v := os.Getenv("LOOPJIT_OBJCOPY"); v != "" {
		cfg.Objcopy = v
	}
	cfg.WorkDir = os.Getenv("LOOPJIT_WORKDIR")
	if v, err := strconv.ParseBool(os.Getenv("LOOPJIT_KEEP")); err == nil {
		cfg.KeepArtifacts = v
	}
	return cfg
}

// Available resolves both tools on PATH, returning the first that is
// missing.
func (c Config) Available() error {
	for _, tool := range []string{c.CC, c.Objcopy} {
		if _, err := exec.LookPath(tool); err != nil {
			return err
		}
	}
	return nil
}
