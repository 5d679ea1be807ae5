package transport

import "testing"

func TestEndpointFollowsPageScheme(t *testing.T) {
	tests := []struct {
		page string
		want string
	}{
		{page: "http://localhost:8080/", want: "ws://localhost:8080/ws"},
		{page: "https://chat.example.com/?room=12", want: "wss://chat.example.com/ws?room=12"},
		{page: "https://chat.example.com/lobby?room=12&x=y", want: "wss://chat.example.com/ws?room=12&x=y"},
		{page: "wss://chat.example.com", want: "wss://chat.example.com/ws"},
	}
	for _, tt := range tests {
		loc, err := ParseLocation(tt.page)
		if err != nil {
			t.Fatalf("ParseLocation(%q) error: %v", tt.page, err)
		}
		if got := loc.Endpoint("/ws"); got != tt.want {
			t.Fatalf("Endpoint(%q)=%q, want %q", tt.page, got, tt.want)
		}
	}
}

func TestParseLocationRejects(t *testing.T) {
	for _, raw := range []string{"ftp://host/", "http:///nohost", "::"} {
		if _, err := ParseLocation(raw); err == nil {
			t.Fatalf("ParseLocation(%q) error=nil, want non-nil", raw)
		}
	}
}

func TestWithRoom(t *testing.T) {
	loc, err := ParseLocation("https://chat.example.com/?lang=en")
	if err != nil {
		t.Fatalf("ParseLocation error: %v", err)
	}
	next := loc.WithRoom("99")
	if next.Room() != "99" {
		t.Fatalf("Room=%q, want 99", next.Room())
	}
	if loc.Room() != "" {
		t.Fatalf("original Room=%q, want empty", loc.Room())
	}
	if got := next.String(); got != "https://chat.example.com/?lang=en&room=99" {
		t.Fatalf("String=%q", got)
	}
}
