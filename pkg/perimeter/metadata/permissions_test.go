package metadata

import (
	"errors"
	"io/fs"
	"testing"
)

func TestRenderSymbolic(t *testing.T) {
	tests := []struct {
		mode uint32
		want string
	}{
		{0o644, "rw-r--r--"},
		{0o755, "rwxr-xr-x"},
		{0o000, "---------"},
		{0o777, "rwxrwxrwx"},
		{0o4755, "rwsr-xr-x"},
		{0o4644, "rwSr--r--"},
		{0o2755, "rwxr-sr-x"},
		{0o2745, "rwxr-Sr-x"},
		{0o1777, "rwxrwxrwt"},
		{0o1776, "rwxrwxrwT"},
		{0o100644, "rw-r--r--"},
	}

	for _, tt := range tests {
		if got := FormatSymbolic.Render(tt.mode); got != tt.want {
			t.Errorf("Render(%o) = %q, want %q", tt.mode, got, tt.want)
		}
	}
}

func TestRenderOctal(t *testing.T) {
	tests := []struct {
		mode uint32
		want string
	}{
		{0o644, "0644"},
		{0o100755, "0755"},
		{0o4755, "4755"},
		{0o41777, "1777"},
	}

	for _, tt := range tests {
		if got := FormatOctal.Render(tt.mode); got != tt.want {
			t.Errorf("Render(%o) = %q, want %q", tt.mode, got, tt.want)
		}
	}
}

func TestRenderFlags(t *testing.T) {
	tests := []struct {
		mode uint32
		want string
	}{
		{0o644, "UserRead, UserWrite, GroupRead, OtherRead"},
		{0o000, "None"},
		{0o4100, "UserExecute, SetUserId"},
		{0o1002, "OtherWrite, Sticky"},
	}

	for _, tt := range tests {
		if got := FormatFlags.Render(tt.mode); got != tt.want {
			t.Errorf("Render(%o) = %q, want %q", tt.mode, got, tt.want)
		}
	}
}

func TestParsePermissionFormat(t *testing.T) {
	tests := []struct {
		input   string
		want    PermissionFormat
		wantErr bool
	}{
		{"symbolic", FormatSymbolic, false},
		{"", FormatSymbolic, false},
		{"OCTAL", FormatOctal, false},
		{"flags", FormatFlags, false},
		{"acl", FormatSymbolic, true},
	}

	for _, tt := range tests {
		got, err := ParsePermissionFormat(tt.input)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParsePermissionFormat(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			continue
		}
		if tt.wantErr && !errors.Is(err, ErrInvalidFormat) {
			t.Errorf("ParsePermissionFormat(%q) error = %v, want ErrInvalidFormat", tt.input, err)
		}
		if got != tt.want {
			t.Errorf("ParsePermissionFormat(%q) = %v, want %v", tt.input, got, tt.want)
		}
	}
}

func TestFileMode(t *testing.T) {
	tests := []struct {
		mode uint32
		want fs.FileMode
	}{
		{0o100644, 0o644},
		{0o4755, fs.ModeSetuid | 0o755},
		{0o2750, fs.ModeSetgid | 0o750},
		{0o41777, fs.ModeSticky | 0o777},
	}

	for _, tt := range tests {
		if got := FileMode(tt.mode); got != tt.want {
			t.Errorf("FileMode(%o) = %v, want %v", tt.mode, got, tt.want)
		}
	}
}
