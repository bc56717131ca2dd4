package stitch

import "testing"

func TestAxisDirection(t *testing.T) {
	for direction := 1; direction <= 3; direction++ {
		a, err := AxisFromDirection(direction)
		if err != nil {
			t.Fatal(err)
		}
		if a.Direction() != direction {
			t.Errorf("direction %d round trip gave %d\n", direction, a.Direction())
		}
	}
	for _, bad := range []int{0, 4, -1} {
		if _, err := AxisFromDirection(bad); err == nil {
			t.Errorf("expected error for direction %d\n", bad)
		}
	}
	if AxisZ.String() != "Z" {
		t.Errorf("bad axis name %s\n", AxisZ)
	}
}

func TestPoint3d(t *testing.T) {
	p, err := StringToPoint3d("3, 4,5", ",")
	if err != nil {
		t.Fatal(err)
	}
	if p != (Point3d{3, 4, 5}) {
		t.Fatalf("bad parse: %s\n", p)
	}
	if p.Neighbor(AxisY) != (Point3d{3, 5, 5}) {
		t.Errorf("bad neighbor: %s\n", p.Neighbor(AxisY))
	}
	if p.Prod() != 60 {
		t.Errorf("bad product: %d\n", p.Prod())
	}
	if p.String() != "(3,4,5)" {
		t.Errorf("bad string: %s\n", p)
	}
	if _, err := StringToPoint3d("1,2", ","); err == nil {
		t.Errorf("expected error on 2d string\n")
	}
}

func TestHasScheme(t *testing.T) {
	tests := map[string]bool{
		"gs://bucket/x":   true,
		"mem://":          true,
		"mem://b":         true,
		"/tmp/block.lblk": false,
		"block_0_0_0":     false,
		"s3://b/k":        true,
		"C:\\blocks":      false,
	}
	for path, expected := range tests {
		if HasScheme(path) != expected {
			t.Errorf("HasScheme(%q) expected %t\n", path, expected)
		}
	}
}
