package element

import (
	"errors"
	"testing"
)

func TestFactoryCreatesRequestedKinds(t *testing.T) {
	f := NewFactory()

	el, err := f.CreateElement("null")
	if err != nil {
		t.Fatalf("create null: %v", err)
	}
	if _, ok := el.(*NullElement); !ok {
		t.Errorf("kind null created %T", el)
	}

	el, err = f.CreateElement("malgo")
	if err != nil {
		t.Fatalf("create malgo: %v", err)
	}
	if _, ok := el.(*MalgoElement); !ok {
		t.Errorf("kind malgo created %T", el)
	}
}

func TestFactoryAutoUsesSilentDetection(t *testing.T) {
	silent := NewFactoryWithDependencies(NewDefaultRegistry(), func() bool { return true })
	el, err := silent.CreateElement("auto")
	if err != nil {
		t.Fatalf("create auto: %v", err)
	}
	if _, ok := el.(*NullElement); !ok {
		t.Errorf("silent auto created %T, want NullElement", el)
	}

	loud := NewFactoryWithDependencies(NewDefaultRegistry(), func() bool { return false })
	el, err = loud.CreateElement("auto")
	if err != nil {
		t.Fatalf("create auto: %v", err)
	}
	if _, ok := el.(*MalgoElement); !ok {
		t.Errorf("non-silent auto created %T, want MalgoElement", el)
	}
}

func TestFactoryEmptyKindDefaultsToAuto(t *testing.T) {
	f := NewFactoryWithDependencies(NewDefaultRegistry(), func() bool { return true })

	el, err := f.CreateElement("")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, ok := el.(*NullElement); !ok {
		t.Errorf("empty kind created %T", el)
	}
}

func TestFactoryRejectsUnknownKind(t *testing.T) {
	f := NewFactory()

	_, err := f.CreateElement("webaudio")
	if !errors.Is(err, ErrInvalidElementKind) {
		t.Fatalf("err = %v, want ErrInvalidElementKind", err)
	}
}

func TestFactoryIsValidKind(t *testing.T) {
	f := NewFactory()

	for _, kind := range []string{"", "auto", "malgo", "null"} {
		if !f.IsValidKind(kind) {
			t.Errorf("kind %q should be valid", kind)
		}
	}
	if f.IsValidKind("webaudio") {
		t.Error("kind webaudio should be invalid")
	}
}

func TestSilentFromEnvironment(t *testing.T) {
	tests := []struct {
		value string
		want  bool
	}{
		{"", false},
		{"1", true},
		{"true", true},
		{"0", false},
		{"false", false},
		{"banana", false},
	}
	for _, tt := range tests {
		t.Run("value="+tt.value, func(t *testing.T) {
			t.Setenv("CUELOOP_SILENT", tt.value)
			if got := silentFromEnvironment(); got != tt.want {
				t.Errorf("silentFromEnvironment() = %v, want %v", got, tt.want)
			}
		})
	}
}
