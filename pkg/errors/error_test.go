package errors

import (
	stderrors "errors"
	"testing"
)

func TestNewCarriesCodeAndMessage(t *testing.T) {
	err := New(ProfileNotFound)
	if err.Code != ProfileNotFound {
		t.Fatalf("code: got %d", err.Code)
	}
	if err.Error() != ProfileNotFound.Message() {
		t.Fatalf("message: got %q", err.Error())
	}
	if err.Stack == "" {
		t.Fatal("expected stack capture")
	}
}

func TestNewfFormatsMessage(t *testing.T) {
	err := Newf(PolicyPathInvalid, "path %q rejected", "/etc/shadow")
	if err.Error() != `path "/etc/shadow" rejected` {
		t.Fatalf("message: got %q", err.Error())
	}
}

func TestWrapPreservesCause(t *testing.T) {
	cause := stderrors.New("disk full")
	err := Wrap(cause, WorkspaceCreateFailed)
	if !stderrors.Is(err, cause) {
		t.Fatal("expected wrapped cause to survive errors.Is")
	}
	if err.Code != WorkspaceCreateFailed {
		t.Fatalf("code: got %d", err.Code)
	}
	if Wrap(nil, WorkspaceCreateFailed) != nil {
		t.Fatal("wrapping nil should return nil")
	}
}

func TestWrapRecodesExistingError(t *testing.T) {
	err := Wrap(New(InternalError), SessionNotFound)
	if err.Code != SessionNotFound {
		t.Fatalf("code: got %d", err.Code)
	}
}

func TestGetCode(t *testing.T) {
	if got := GetCode(nil); got != Success {
		t.Fatalf("nil: got %d", got)
	}
	if got := GetCode(New(EngineSpawnFailed)); got != EngineSpawnFailed {
		t.Fatalf("typed: got %d", got)
	}
	if got := GetCode(stderrors.New("plain")); got != InternalError {
		t.Fatalf("plain: got %d", got)
	}
}

func TestIsMatchesCode(t *testing.T) {
	err := New(CgroupSetupFailed)
	if !Is(err, CgroupSetupFailed) {
		t.Fatal("expected code match")
	}
	if Is(err, Timeout) {
		t.Fatal("unexpected code match")
	}
	if Is(nil, Timeout) {
		t.Fatal("nil should never match")
	}
}

func TestWithDetail(t *testing.T) {
	err := New(PolicyPathInvalid).WithDetail("path", "/nope")
	if err.Details["path"] != "/nope" {
		t.Fatalf("detail: got %v", err.Details["path"])
	}
}

func TestUnknownCodeMessage(t *testing.T) {
	if got := ErrorCode(99999).Message(); got != "Unknown error" {
		t.Fatalf("got %q", got)
	}
}
