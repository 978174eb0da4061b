package toolchain

import (
	"runtime"

	"modernc.org/cc/v4"
)

// checkC parses text as a C translation unit in-process. It catches
// malformed output before an external compiler is spawned.
func checkC(name, text string) error {
	cfg, err := cc.NewConfig(runtime.GOOS, runtime.GOARCH)
	if err != nil {
		return err
	}
	_, err = cc.Parse(cfg, []cc.Source{
		{Name: "<predefined>", Value: cfg.Predefined},
		{Name: "<builtin>", Value: cc.Builtin},
		{Name: name, Value: text},
	})
	return err
}
