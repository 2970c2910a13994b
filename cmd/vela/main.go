// cmd/vela/main.go
package main

import (
	"fmt"
	"log"
	"os"

	"github.com/mattn/go-isatty"

	"vela/internal/aot"
	"vela/internal/bytecode"
	"vela/internal/embed"
)

const version = "0.1.0"

func main() {
	args := os.Args[1:]
	if len(args) == 0 {
		showUsage()
		return
	}

	switch args[0] {
	case "run":
		runCommand(args[1:])
	case "ir":
		irCommand(args[1:])
	case "analyze":
		analyzeCommand(args[1:])
	case "bytecode":
		bytecodeCommand(args[1:])
	case "emit-llvm":
		emitLLVMCommand(args[1:])
	case "repl":
		replCommand()
	case "--version", "-v", "version":
		fmt.Println("vela", version)
	case "--help", "-h", "help":
		showUsage()
	default:
		fmt.Fprintf(os.Stderr, "vela: unknown command %q\n", args[0])
		showUsage()
		os.Exit(1)
	}
}

func showUsage() {
	fmt.Println(`vela - a statically typed scientific-computing language

Usage:
  vela run <file>            compile and execute a source file
  vela ir <file>              lower a source file and print its IR
  vela analyze <file>         run type-stability analysis without executing
  vela emit-llvm <file>       emit LLVM IR for a source file's functions
  vela bytecode save <in> <out>   compile a source file to a bytecode file
  vela bytecode run <file>        execute a previously saved bytecode file
  vela repl                   start an interactive session
  vela version                 print the version`)
}

func readSource(path string) string {
	data, err := os.ReadFile(path)
	if err != nil {
		log.Fatalf("vela: could not read %s: %v", path, err)
	}
	return string(data)
}

func runCommand(args []string) {
	if len(args) < 1 {
		log.Fatal("vela run: expected a source file")
	}
	source := readSource(args[0])
	result, err := embed.CompileAndRun(source, 1)
	fmt.Print(result.Output)
	if err != nil {
		log.Fatalf("vela run: %v", err)
	}
}

func irCommand(args []string) {
	if len(args) < 1 {
		log.Fatal("vela ir: expected a source file")
	}
	source := readSource(args[0])
	prog, err := embed.CompileToIR(source)
	if err != nil {
		log.Fatalf("vela ir: %v", err)
	}
	for _, fn := range prog.Functions {
		fmt.Printf("fn %s (index %d, base=%v)\n", fn.Signature(), fn.Index, fn.IsBaseExt)
	}
}

func analyzeCommand(args []string) {
	if len(args) < 1 {
		log.Fatal("vela analyze: expected a source file")
	}
	source := readSource(args[0])
	report, err := embed.AnalyzeTypeStability(source)
	if err != nil {
		log.Fatalf("vela analyze: %v", err)
	}
	for _, fr := range report.Functions {
		fmt.Printf("%s: %s\n", fr.Function, fr.Status)
		for _, reason := range fr.Reasons {
			fmt.Printf("  - %s\n", reason)
		}
		for _, suggestion := range fr.Suggestions {
			fmt.Printf("  > %s\n", suggestion)
		}
	}
}

func emitLLVMCommand(args []string) {
	if len(args) < 1 {
		log.Fatal("vela emit-llvm: expected a source file")
	}
	source := readSource(args[0])
	prog, err := embed.CompileToIR(source)
	if err != nil {
		log.Fatalf("vela emit-llvm: %v", err)
	}
	mod, err := aot.EmitProgram(prog)
	if err != nil {
		log.Fatalf("vela emit-llvm: %v", err)
	}
	fmt.Println(mod.String())
}

func bytecodeCommand(args []string) {
	if len(args) < 1 {
		log.Fatal("vela bytecode: expected a subcommand (save|run)")
	}
	switch args[0] {
	case "save":
		if len(args) < 3 {
			log.Fatal("vela bytecode save: expected <in> <out>")
		}
		bytecodeSave(args[1], args[2])
	case "run":
		if len(args) < 2 {
			log.Fatal("vela bytecode run: expected <file>")
		}
		bytecodeRun(args[1])
	default:
		log.Fatalf("vela bytecode: unknown subcommand %q", args[0])
	}
}

func bytecodeSave(inPath, outPath string) {
	source := readSource(inPath)
	prog, err := embed.CompileToIR(source)
	if err != nil {
		log.Fatalf("vela bytecode save: %v", err)
	}
	cp, err := embed.CompileProgram(prog)
	if err != nil {
		log.Fatalf("vela bytecode save: %v", err)
	}
	out, err := os.Create(outPath)
	if err != nil {
		log.Fatalf("vela bytecode save: could not create %s: %v", outPath, err)
	}
	defer out.Close()
	if err := bytecode.Save(out, cp); err != nil {
		log.Fatalf("vela bytecode save: %v", err)
	}
}

func bytecodeRun(path string) {
	f, err := os.Open(path)
	if err != nil {
		log.Fatalf("vela bytecode run: could not open %s: %v", path, err)
	}
	defer f.Close()
	cp, err := bytecode.Load(f)
	if err != nil {
		log.Fatalf("vela bytecode run: %v", err)
	}
	result, err := embed.RunCompiled(cp, 1)
	fmt.Print(result.Output)
	if err != nil {
		log.Fatalf("vela bytecode run: %v", err)
	}
}

// interactive reports whether stdout is a real terminal rather than a pipe
// or redirected file — the REPL only emits ANSI color codes in the former
// case, the same isatty.IsTerminal gate the teacher's CLI uses before
// decorating output.
func interactive() bool {
	return isatty.IsTerminal(os.Stdout.Fd()) || isatty.IsCygwinTerminal(os.Stdout.Fd())
}

func replCommand() {
	session, err := embed.NewREPLSession(1)
	if err != nil {
		log.Fatalf("vela repl: %v", err)
	}
	color := interactive()
	errPrefix, errSuffix := "error: ", ""
	if color {
		errPrefix, errSuffix = "\x1b[31merror: ", "\x1b[0m"
	}
	fmt.Println("vela repl", version, "- Ctrl-D to exit")
	buf := make([]byte, 4096)
	for {
		fmt.Print("> ")
		n, err := os.Stdin.Read(buf)
		if n == 0 || err != nil {
			return
		}
		result, evalErr := session.Eval(string(buf[:n]))
		fmt.Print(result.Output)
		if evalErr != nil {
			fmt.Fprintf(os.Stderr, "%s%v%s\n", errPrefix, evalErr, errSuffix)
		}
	}
}
