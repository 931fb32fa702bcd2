package services

import (
	"errors"
	"testing"
)

func TestInputValidatorAcceptsAllowedType(t *testing.T) {
	v := NewInputValidator(DefaultValidatorConfig())
	if err := v.Validate("video/mp4", 2<<20); err != nil {
		t.Fatalf("Validate: unexpected error: %v", err)
	}
}

func TestInputValidatorStripsContentTypeParams(t *testing.T) {
	v := NewInputValidator(DefaultValidatorConfig())
	if err := v.Validate("video/mp4; codecs=avc1", 1024); err != nil {
		t.Fatalf("Validate: unexpected error: %v", err)
	}
}

func TestInputValidatorRejectsUnsupportedType(t *testing.T) {
	v := NewInputValidator(DefaultValidatorConfig())
	err := v.Validate("application/pdf", 1024)
	if !errors.Is(err, ErrUnsupportedFileType) {
		t.Fatalf("Validate: want ErrUnsupportedFileType, got %v", err)
	}
}

func TestInputValidatorRejectsOversizedFile(t *testing.T) {
	v := NewInputValidator(ValidatorConfig{
		AllowedMimeTypes: []string{"video/mp4"},
		MaxUploadBytes:   1 << 20,
	})
	err := v.Validate("video/mp4", 2<<20)
	if !errors.Is(err, ErrFileTooLarge) {
		t.Fatalf("Validate: want ErrFileTooLarge, got %v", err)
	}
}

func TestInputValidatorRejectsEmptyFile(t *testing.T) {
	v := NewInputValidator(DefaultValidatorConfig())
	err := v.Validate("video/mp4", 0)
	if !errors.Is(err, ErrFileEmpty) {
		t.Fatalf("Validate: want ErrFileEmpty, got %v", err)
	}
}

func TestInputValidatorRuleOrderTypeBeforeSize(t *testing.T) {
	// A zero-byte file of a disallowed type must report the type failure.
	v := NewInputValidator(DefaultValidatorConfig())
	err := v.Validate("application/zip", 0)
	if !errors.Is(err, ErrUnsupportedFileType) {
		t.Fatalf("Validate: want ErrUnsupportedFileType first, got %v", err)
	}
}

func TestInputValidatorDistinctReasons(t *testing.T) {
	reasons := map[string]bool{
		ErrUnsupportedFileType.Error(): true,
		ErrFileTooLarge.Error():        true,
		ErrFileEmpty.Error():           true,
	}
	if len(reasons) != 3 {
		t.Fatalf("rejection reasons are not distinct: %v", reasons)
	}
}
