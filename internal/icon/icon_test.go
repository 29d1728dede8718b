package icon

import (
	"strings"
	"testing"
)

func TestURL(t *testing.T) {
	tests := []struct {
		code string
		want string
	}{
		{"01d", "https://openweathermap.org/img/wn/01d.png"},
		{"10n", "https://openweathermap.org/img/wn/10n.png"},
		{"a/b", "https://openweathermap.org/img/wn/a%2Fb.png"},
	}
	for _, tt := range tests {
		if got := URL(tt.code); got != tt.want {
			t.Errorf("URL(%q) = %q, want %q", tt.code, got, tt.want)
		}
	}
	if !strings.HasSuffix(URL("01d"), "01d.png") {
		t.Errorf("URL(01d) does not end in 01d.png")
	}
}

func TestResolver_BaseURL(t *testing.T) {
	r := Resolver{BaseURL: "http://localhost:8081/icons/"}
	if got := r.URL("04d"); got != "http://localhost:8081/icons/04d.png" {
		t.Errorf("URL() = %q", got)
	}
}
