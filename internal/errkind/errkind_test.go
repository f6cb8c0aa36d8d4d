package errkind

import (
	"errors"
	"fmt"
	"io/fs"
	"syscall"
	"testing"
)

func TestClassify_Tagged(t *testing.T) {
	err := New(MalformedInput, errors.New("bad ring"))
	if got := Classify(err); got != MalformedInput {
		t.Errorf("Classify = %s, want %s", got, MalformedInput)
	}
}

func TestClassify_WrappedTag(t *testing.T) {
	inner := New(NoData, errors.New("empty table"))
	wrapped := fmt.Errorf("load districts: %w", inner)
	if got := Classify(wrapped); got != NoData {
		t.Errorf("Classify = %s, want %s", got, NoData)
	}
}

func TestClassify_FileNotExist(t *testing.T) {
	err := fmt.Errorf("open layer: %w", fs.ErrNotExist)
	if got := Classify(err); got != NoData {
		t.Errorf("Classify = %s, want %s", got, NoData)
	}
}

func TestClassify_Untagged(t *testing.T) {
	if got := Classify(errors.New("boom")); got != Internal {
		t.Errorf("Classify = %s, want %s", got, Internal)
	}
}

func TestNew_NilPassthrough(t *testing.T) {
	if New(NoData, nil) != nil {
		t.Error("New(kind, nil) should be nil")
	}
}

func TestIs(t *testing.T) {
	err := New(ExternalService, errors.New("pg down"))
	if !Is(err, ExternalService) {
		t.Error("expected ExternalService kind")
	}
	if Is(err, NoData) {
		t.Error("did not expect NoData kind")
	}
}

func TestIsTransient_ConnectionReset(t *testing.T) {
	err := fmt.Errorf("write tcp: %w", syscall.ECONNRESET)
	if !IsTransient(err) {
		t.Error("ECONNRESET should be transient")
	}
}

func TestIsTransient_SQLiteBusy(t *testing.T) {
	if !IsTransient(errors.New("database is locked (5) (SQLITE_BUSY)")) {
		t.Error("locked database should be transient")
	}
}

func TestIsTransient_RegularError(t *testing.T) {
	if IsTransient(errors.New("invalid geometry: unclosed ring")) {
		t.Error("regular error should not be transient")
	}
}

func TestIsTransient_Nil(t *testing.T) {
	if IsTransient(nil) {
		t.Error("nil error should not be transient")
	}
}
