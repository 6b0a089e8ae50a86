package geo

import (
	"math"
	"testing"
)

func TestDistanceKmKnownPairs(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		a, b   Location
		wantKm float64
		tolKm  float64
	}{
		{
			name:   "same point",
			a:      Location{Lat: 40.7128, Lng: -74.0060},
			b:      Location{Lat: 40.7128, Lng: -74.0060},
			wantKm: 0,
			tolKm:  0.001,
		},
		{
			name:   "manhattan to brooklyn",
			a:      Location{Lat: 40.7128, Lng: -74.0060},
			b:      Location{Lat: 40.6782, Lng: -73.9442},
			wantKm: 6.4,
			tolKm:  0.5,
		},
		{
			name:   "new york to london",
			a:      Location{Lat: 40.7128, Lng: -74.0060},
			b:      Location{Lat: 51.5074, Lng: -0.1278},
			wantKm: 5570,
			tolKm:  50,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := DistanceKm(tt.a, tt.b)
			if math.Abs(got-tt.wantKm) > tt.tolKm {
				t.Fatalf("DistanceKm = %.2f, want %.2f ± %.2f", got, tt.wantKm, tt.tolKm)
			}
		})
	}
}

func TestDistanceKmSymmetric(t *testing.T) {
	t.Parallel()

	a := Location{Lat: 40.71, Lng: -74.0}
	b := Location{Lat: 40.75, Lng: -73.98}
	if d1, d2 := DistanceKm(a, b), DistanceKm(b, a); math.Abs(d1-d2) > 1e-9 {
		t.Fatalf("distance not symmetric: %v vs %v", d1, d2)
	}
}

func TestLocationIsZero(t *testing.T) {
	t.Parallel()

	if !(Location{}).IsZero() {
		t.Fatalf("zero value should report IsZero")
	}
	if (Location{Lat: 1}).IsZero() {
		t.Fatalf("non-zero location misreported")
	}
}
