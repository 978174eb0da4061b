package toolchain

import (
	"runtime"

	"github.com/ajroetker/loopjit/internal/cpuinfo"
)

// ObjectFormat is the container format the host compiler emits.
type ObjectFormat string

const (
	ELF   ObjectFormat = "elf"
	MachO ObjectFormat = "macho"
)

// Profile captures the per-platform parts of a build.
type Profile struct {
	Name    string
	Format  ObjectFormat
	Section string   // section holding the function's instructions
	Flags   []string // ISA flags chosen from detected CPU features
}

// baseFlags keep the object down to one self-contained function whose
// floating-point results match the interpreter (no contraction).
var baseFlags = []string{
	"-O2",
	"-c",
	"-fPIC",
	"-fno-asynchronous-unwind-tables",
	"-fno-stack-protector",
	"-fno-exceptions",
	"-fno-jump-tables",
	"-fno-tree-vectorize",
	"-fno-tree-slp-vectorize",
	"-ffp-contract=off",
}

// DefaultProfile returns the profile for the host platform.
func DefaultProfile() Profile {
	p := Profile{Name: runtime.GOOS + "/" + runtime.GOARCH, Format: ELF, Section: ".text"}
	if runtime.GOOS == "darwin" {
		p.Format = MachO
		p.Section = "__TEXT,__text"
	}
	switch runtime.GOARCH {
	case "amd64":
		p.Flags = append(p.Flags, "-fcf-protection=none")
		if cpuinfo.Has("sse42") {
			p.Flags = append(p.Flags, "-msse4.2")
		}
		if cpuinfo.Has("avx2") {
			p.Flags = append(p.Flags, "-mavx2")
		}
	}
	return p
}

// compileArgs returns the compiler argv (without the program) that builds
// obj from src.
func (p Profile) compileArgs(cfg Config, src, obj string) []string {
	args := make([]string, 0, len(baseFlags)+len(p.Flags)+len(cfg.ExtraFlags)+3)
	args = append(args, baseFlags...)
	args = append(args, p.Flags...)
	args = append(args, cfg.ExtraFlags...)
	return append(args, "-o", obj, src)
}

// extractArgs returns the objcopy argv that writes the raw section bytes
// of obj to bin.
func (p Profile) extractArgs(obj, bin string) []string {
	return []string{"-O", "binary", "-j", p.Section, obj, bin}
}
