package reactorerr

import (
	"errors"
	"strings"
	"testing"
)

func TestConfigFailureShape(t *testing.T) {
	err := ConfigFailure("epoll", errors.New("too many open files"))
	if err.Category != CategoryConfig {
		t.Fatalf("Category = %v, want %v", err.Category, CategoryConfig)
	}
	if err.Code != "DESCRIPTOR_CREATE_FAILED" {
		t.Fatalf("Code = %q, want %q", err.Code, "DESCRIPTOR_CREATE_FAILED")
	}
	if !strings.Contains(err.Message, "epoll") {
		t.Fatalf("Message = %q, want it to mention %q", err.Message, "epoll")
	}
	if err.Context["what"] != "epoll" {
		t.Fatalf("Context[\"what\"] = %v, want %q", err.Context["what"], "epoll")
	}
}

func TestSocketFailureShape(t *testing.T) {
	err := SocketFailure("bind", 7, errors.New("address in use"))
	if err.Category != CategorySocket {
		t.Fatalf("Category = %v, want %v", err.Category, CategorySocket)
	}
	if err.Context["fd"] != 7 {
		t.Fatalf("Context[\"fd\"] = %v, want 7", err.Context["fd"])
	}
}

func TestConnectFailureShape(t *testing.T) {
	err := ConnectFailure("10.0.0.1:80", errors.New("connection refused"))
	if err.Category != CategoryConnect {
		t.Fatalf("Category = %v, want %v", err.Category, CategoryConnect)
	}
	if err.Context["addr"] != "10.0.0.1:80" {
		t.Fatalf("Context[\"addr\"] = %v, want %q", err.Context["addr"], "10.0.0.1:80")
	}
}

func TestProgrammingViolationShape(t *testing.T) {
	err := ProgrammingViolation("called from the wrong goroutine")
	if err.Category != CategoryProgramming {
		t.Fatalf("Category = %v, want %v", err.Category, CategoryProgramming)
	}
	if err.Message != "called from the wrong goroutine" {
		t.Fatalf("Message = %q, want %q", err.Message, "called from the wrong goroutine")
	}
	if err.Context != nil {
		t.Fatalf("Context = %v, want nil", err.Context)
	}
}

func TestErrorStringIncludesCategoryCodeAndCaller(t *testing.T) {
	err := ConfigFailure("timerfd", errors.New("boom"))
	s := err.Error()
	if !strings.Contains(s, string(CategoryConfig)) {
		t.Fatalf("Error() = %q, want it to contain category %q", s, CategoryConfig)
	}
	if !strings.Contains(s, "DESCRIPTOR_CREATE_FAILED") {
		t.Fatalf("Error() = %q, want it to contain the code", s)
	}
	if !strings.Contains(s, "caller:") {
		t.Fatalf("Error() = %q, want it to report a caller", s)
	}
	if !strings.Contains(s, "ConfigFailure") {
		t.Fatalf("Error() = %q, want caller to name ConfigFailure", s)
	}
}
