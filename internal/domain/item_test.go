package domain

import (
	"errors"
	"testing"
)

func TestNormalizeCoordinates(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		want    string
		wantErr bool
	}{
		{name: "empty", in: "", want: ""},
		{name: "blank", in: "   ", want: ""},
		{name: "plain", in: "40.712776,-74.005974", want: "40.712776,-74.005974"},
		{name: "spaces", in: " 51.5 , -0.12 ", want: "51.5,-0.12"},
		{name: "integers", in: "0,0", want: "0,0"},
		{name: "edges", in: "-90,180", want: "-90,180"},
		{name: "single value", in: "12.5", wantErr: true},
		{name: "three values", in: "1,2,3", wantErr: true},
		{name: "not a number", in: "north,south", wantErr: true},
		{name: "lat out of range", in: "91,0", wantErr: true},
		{name: "lng out of range", in: "0,-181", wantErr: true},
		{name: "nan", in: "NaN,NaN", wantErr: true},
		{name: "nan latitude", in: "nan,10", wantErr: true},
		{name: "nan longitude", in: "10,NaN", wantErr: true},
		{name: "infinity", in: "+Inf,0", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NormalizeCoordinates(tt.in)
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidCoordinates) {
					t.Fatalf("NormalizeCoordinates(%q) error = %v, want ErrInvalidCoordinates", tt.in, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("NormalizeCoordinates(%q) unexpected error: %v", tt.in, err)
			}
			if got != tt.want {
				t.Fatalf("NormalizeCoordinates(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestItemOwnedBy(t *testing.T) {
	item := &Item{ID: "item-1", UserID: "user-1"}
	if !item.OwnedBy("user-1") {
		t.Fatalf("expected owner to match")
	}
	if item.OwnedBy("user-2") {
		t.Fatalf("expected other user not to match")
	}
	if item.OwnedBy("") {
		t.Fatalf("expected empty requester not to match")
	}
	var missing *Item
	if missing.OwnedBy("user-1") {
		t.Fatalf("nil item must not be owned")
	}
}
