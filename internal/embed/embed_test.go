package embed

import "testing"

func TestCompileToIR(t *testing.T) {
	prog, err := CompileToIR("let x = 1 + 2")
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	if prog.Main == nil {
		t.Fatal("expected a non-nil main block")
	}
	if len(prog.FunctionsNamed("Abs")) != 2 {
		t.Fatalf("expected the Base library's Abs overloads to be merged in")
	}
}

func TestCompileAndRun(t *testing.T) {
	result, err := CompileAndRun("print(1 + 2)", 1)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if result.Output != "3" {
		t.Fatalf("got output %q", result.Output)
	}
}

func TestAnalyzeTypeStability(t *testing.T) {
	report, err := AnalyzeTypeStability("fn addOne(x) { return x + 1 }\naddOne(1)")
	if err != nil {
		t.Fatalf("analyze: %v", err)
	}
	if len(report.Functions) == 0 {
		t.Fatal("expected at least one function report")
	}
}

func TestREPLSessionAccumulates(t *testing.T) {
	session, err := NewREPLSession(1)
	if err != nil {
		t.Fatalf("new session: %v", err)
	}
	if _, err := session.Eval("fn square(x) { return x * x }"); err != nil {
		t.Fatalf("eval 1: %v", err)
	}
	result, err := session.Eval("print(square(4))")
	if err != nil {
		t.Fatalf("eval 2: %v", err)
	}
	if result.Output != "16" {
		t.Fatalf("got output %q", result.Output)
	}
}
