package strings

import "testing"

func TestToSnakeCase(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"User", "user"},
		{"UserReferenceProxy", "user_reference_proxy"},
		{"HTTPRequest", "http_request"},
		{"examplecomappmodelUserReferenceProxy", "examplecomappmodel_user_reference_proxy"},
		{"FooBarReferenceProxy", "foo_bar_reference_proxy"},
		{"already_snake", "already_snake"},
		{"", ""},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if got := ToSnakeCase(tt.input); got != tt.want {
				t.Errorf("ToSnakeCase(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}
