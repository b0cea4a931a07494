// Command fsd is a short alias for fogsched. A scenario file given as the
// first argument runs it: "fsd dag.json -q" is "fogsched run --scenario dag.json -q".
package main

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"syscall"
)

const binary = "fogsched"

func main() {
	bin, err := resolve(os.Getenv("FOGSCHED_BIN"), os.Executable, exec.LookPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "fsd: %v\n", err)
		os.Exit(1)
	}
	if err := syscall.Exec(bin, expand(os.Args[1:]), os.Environ()); err != nil {
		fmt.Fprintf(os.Stderr, "fsd: exec %s: %v\n", bin, err)
		os.Exit(1)
	}
}

// resolve finds the fogsched binary: an explicit override first, then the
// directory fsd was installed into, then PATH.
func resolve(override string, self func() (string, error), lookPath func(string) (string, error)) (string, error) {
	if override != "" {
		return override, nil
	}
	if exe, err := self(); err == nil {
		sibling := filepath.Join(filepath.Dir(exe), binary)
		if info, err := os.Stat(sibling); err == nil && !info.IsDir() && info.Mode()&0111 != 0 {
			return sibling, nil
		}
	}
	bin, err := lookPath(binary)
	if err != nil {
		return "", fmt.Errorf("%s not found next to fsd or on PATH (set FOGSCHED_BIN)", binary)
	}
	return bin, nil
}

// expand builds the fogsched argv for the given fsd arguments.
func expand(args []string) []string {
	argv := []string{binary}
	if len(args) > 0 && strings.HasSuffix(args[0], ".json") {
		argv = append(argv, "run", "--scenario", args[0])
		return append(argv, args[1:]...)
	}
	return append(argv, args...)
}
