package validation

import (
	"errors"
	"reflect"
	"strings"
	"testing"
)

func TestValidateKeyword(t *testing.T) {
	tests := []struct {
		name    string
		keyword string
		want    bool
	}{
		{"simple", "Log", true},
		{"with spaces", "Open Browser", true},
		{"qualified", "SeleniumLibrary.Click Button", true},
		{"embedded argument", "User ${name} Logs In", true},
		{"unicode", "Überprüfe Seite", true},
		{"empty string", "", false},
		{"blank", "   ", false},
		{"too long", strings.Repeat("a", MaxKeywordLength+1), false},
		{"max length", strings.Repeat("a", MaxKeywordLength), true},
		{"newline", "Log\nInjected", false},
		{"nul byte", "Log\x00", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ValidateKeyword(tt.keyword)
			if got != tt.want {
				t.Errorf("ValidateKeyword(%q) = %v, want %v", tt.keyword, got, tt.want)
			}
		})
	}
}

func TestNormalizeKeyword(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"Open Browser", "Open Browser"},
		{"  Open   Browser \t", "Open Browser"},
		{"Log", "Log"},
		{"   ", ""},
	}
	for _, tt := range tests {
		if got := NormalizeKeyword(tt.in); got != tt.want {
			t.Errorf("NormalizeKeyword(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestRecommendRequest_FullContext(t *testing.T) {
	req := RecommendRequest{Context: []string{" Open  Browser", "", "Login"}, Keyword: "Click Button "}
	want := []string{"Open Browser", "Login", "Click Button"}
	if got := req.FullContext(); !reflect.DeepEqual(got, want) {
		t.Errorf("FullContext() = %v, want %v", got, want)
	}

	empty := RecommendRequest{}
	if got := empty.FullContext(); len(got) != 0 {
		t.Errorf("FullContext() on empty request = %v, want empty", got)
	}
}

func TestStruct(t *testing.T) {
	tests := []struct {
		name       string
		req        any
		wantFields []string
	}{
		{"valid recommend", &RecommendRequest{Keyword: "Log", MaxRecommendations: 5}, nil},
		{"empty recommend", &RecommendRequest{}, nil},
		{"bad context entry", &RecommendRequest{Context: []string{"Log", "bad\nname"}}, []string{"context[1]"}},
		{"too many results", &RecommendRequest{MaxRecommendations: 101}, []string{"max_recommendations"}},
		{"negative results", &AutocompleteRequest{Keyword: "lo", MaxResults: -1}, []string{"max_results"}},
		{"missing partial", &AutocompleteRequest{}, []string{"keyword"}},
		{"missing keywords", &ContextRequest{}, []string{"keywords"}},
		{"valid context", &ContextRequest{Keywords: []string{"Open Browser"}}, nil},
		{"huge popular limit", &PopularQuery{Limit: 5000}, []string{"limit"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Struct(tt.req)
			if tt.wantFields == nil {
				if err != nil {
					t.Fatalf("Struct() error = %v, want nil", err)
				}
				return
			}
			var verr *Error
			if !errors.As(err, &verr) {
				t.Fatalf("Struct() error = %v, want *Error", err)
			}
			if !reflect.DeepEqual(verr.Fields, tt.wantFields) {
				t.Errorf("Struct() fields = %v, want %v", verr.Fields, tt.wantFields)
			}
			if verr.Error() == "" {
				t.Error("Struct() error message is empty")
			}
		})
	}
}
