package toolchain

import (
	"debug/elf"
	"debug/macho"
	"fmt"
)

// checkObject verifies the compiled object holds fn at the start of a single
// non-empty text section with no relocations. It inspects metadata only; the
// instructions themselves are not examined.
func checkObject(format ObjectFormat, path, fn string) error {
	switch format {
	case ELF:
		return checkELF(path, fn)
	case MachO:
		return checkMachO(path, fn)
	}
	return fmt.Errorf("unknown object format %q", format)
}

func checkELF(path, fn string) error {
	f, err := elf.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	text := -1
	for i, s := range f.Sections {
		if s.Flags&elf.SHF_EXECINSTR == 0 || s.Size == 0 {
			continue
		}
		if s.Name != ".text" {
			return fmt.Errorf("code emitted into extra section %s", s.Name)
		}
		text = i
	}
	if text < 0 {
		return fmt.Errorf("no code in .text")
	}
	for _, s := range f.Sections {
		if (s.Type == elf.SHT_RELA || s.Type == elf.SHT_REL) && s.Info == uint32(text) && s.Size > 0 {
			return fmt.Errorf("%s has relocations (%s); code is not self-contained", f.Sections[text].Name, s.Name)
		}
	}

	syms, err := f.Symbols()
	if err != nil {
		return fmt.Errorf("read symbols: %w", err)
	}
	for _, sym := range syms {
		if sym.Name == fn && elf.ST_TYPE(sym.Info) == elf.STT_FUNC {
			if int(sym.Section) != text || sym.Value != 0 {
				return fmt.Errorf("%s is not at the start of .text (offset %#x)", fn, sym.Value)
			}
			return nil
		}
	}
	return fmt.Errorf("symbol %s not found", fn)
}

func checkMachO(path, fn string) error {
	f, err := macho.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	var text *macho.Section
	for _, s := range f.Sections {
		if s.Seg != "__TEXT" || s.Size == 0 {
			continue
		}
		switch s.Name {
		case "__text":
		case "__eh_frame":
			continue
		default:
			return fmt.Errorf("unexpected section %s,%s; code is not self-contained", s.Seg, s.Name)
		}
		text = s
	}
	if text == nil {
		return fmt.Errorf("no code in __TEXT,__text")
	}
	if text.Nreloc > 0 {
		return fmt.Errorf("__TEXT,__text has %d relocations; code is not self-contained", text.Nreloc)
	}
	if f.Symtab == nil {
		return fmt.Errorf("no symbol table")
	}
	for _, sym := range f.Symtab.Syms {
		if sym.Name == "_"+fn {
			if sym.Value != text.Addr {
				return fmt.Errorf("%s is not at the start of __text (address %#x)", fn, sym.Value)
			}
			return nil
		}
	}
	return fmt.Errorf("symbol _%s not found", fn)
}
