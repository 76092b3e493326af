package validate_test

import (
	"testing"

	"github.com/adamwoolhether/httpchain/client/errs"
	"github.com/adamwoolhether/httpchain/internal/validate"
)

type retry struct {
	Attempts int `yaml:"attempts" validate:"min=0"`
}

type profile struct {
	BaseURL string `yaml:"base_url" validate:"required,url"`
	HTTP    string `yaml:"http" validate:"omitempty,oneof=1.1 2.0"`
	Retry   retry  `yaml:"retry"`
}

func TestStruct_Valid(t *testing.T) {
	p := profile{BaseURL: "https://api.example.com", HTTP: "2.0"}

	if err := validate.Struct(p); err != nil {
		t.Fatalf("expected no error, got: %v", err)
	}
}

func TestStruct_FieldErrors(t *testing.T) {
	p := profile{HTTP: "3.0", Retry: retry{Attempts: -1}}

	err := validate.Struct(p)
	if err == nil {
		t.Fatal("expected validation error")
	}

	fe := errs.GetFieldErrors(err)
	if fe == nil {
		t.Fatalf("expected FieldErrors, got %T", err)
	}

	fields := fe.Fields()
	if got := fields["base_url"]; got != "This field is required" {
		t.Errorf("base_url = %q", got)
	}
	if _, ok := fields["http"]; !ok {
		t.Errorf("expected http field error, got %v", fields)
	}
	if _, ok := fields["retry.attempts"]; !ok {
		t.Errorf("expected retry.attempts field error, got %v", fields)
	}
}
