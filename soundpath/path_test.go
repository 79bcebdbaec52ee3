package soundpath

import "testing"

func TestPathIDHashOrderSensitive(t *testing.T) {
	a := PathID{SourceID: 1, ListenerID: 2, Points: []PathPoint{
		{Type: PointSpecular, Triangle: 10},
		{Type: PointDiffuse, Triangle: 20, PointID: 3},
	}}
	b := PathID{SourceID: 1, ListenerID: 2, Points: []PathPoint{
		{Type: PointDiffuse, Triangle: 20, PointID: 3},
		{Type: PointSpecular, Triangle: 10},
	}}
	if a.Hash() == b.Hash() {
		t.Fatalf("expected different hashes for reordered points")
	}
	if a.Equal(b) {
		t.Fatalf("expected PathID.Equal to treat reordered points as distinct")
	}
}

func TestPathIDHashDeterministic(t *testing.T) {
	a := PathID{SourceID: 5, ListenerID: 7, Points: []PathPoint{{Type: PointEdgeDiffraction, Triangle: 1, PointID: 2}}}
	c := PathID{SourceID: 5, ListenerID: 7, Points: []PathPoint{{Type: PointEdgeDiffraction, Triangle: 1, PointID: 2}}}
	if a.Hash() != c.Hash() {
		t.Fatalf("expected identical hash for identical path ids")
	}
	if !a.Equal(c) {
		t.Fatalf("expected Equal for identical path ids")
	}
}

func TestDopplerCentsZeroAtZeroSpeed(t *testing.T) {
	if v := DopplerCents(0, 343); v != 0 {
		t.Fatalf("DopplerCents(0,343) = %v, want 0", v)
	}
}

func TestDopplerCentsSignAndMonotonic(t *testing.T) {
	closing := DopplerCents(-10, 343)
	receding := DopplerCents(10, 343)
	if closing >= 0 {
		t.Fatalf("expected negative cents when closing speed is negative (approaching), got %v", closing)
	}
	if receding <= 0 {
		t.Fatalf("expected positive cents when moving away, got %v", receding)
	}
	fast := DopplerCents(50, 343)
	if fast <= receding {
		t.Fatalf("expected DopplerCents to increase with relative speed: %v vs %v", fast, receding)
	}
}

func TestExceedsCentsThreshold(t *testing.T) {
	if ExceedsCents(0.01, 343, 5) {
		t.Fatalf("tiny closing speed should not exceed a 5-cent threshold")
	}
	if !ExceedsCents(50, 343, 5) {
		t.Fatalf("large closing speed should exceed a 5-cent threshold")
	}
}
