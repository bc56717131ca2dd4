package stitch

import (
	"fmt"
	"strconv"
	"strings"
)

// Axis is a 0-based array axis index.  Blocks are indexed so that axis 0 of the
// grid corresponds to axis 0 of each stored label array.
type Axis uint8

const (
	AxisX Axis = iota
	AxisY
	AxisZ
)

// AxisFromDirection converts the 1-based direction used on command lines
// (1, 2, 3 => adjacent along X, Y, Z) to an array axis.
func AxisFromDirection(direction int) (Axis, error) {
	if direction < 1 || direction > 3 {
		return 0, fmt.Errorf("direction must be 1, 2, or 3, got %d", direction)
	}
	return Axis(direction - 1), nil
}

// Direction returns the 1-based direction for the axis.
func (a Axis) Direction() int {
	return int(a) + 1
}

func (a Axis) String() string {
	switch a {
	case AxisX:
		return "X"
	case AxisY:
		return "Y"
	case AxisZ:
		return "Z"
	default:
		return fmt.Sprintf("axis%d", uint8(a))
	}
}

// Point3d is an ordered list of three 32-bit signed integers.
type Point3d [3]int32

func (p Point3d) String() string {
	return fmt.Sprintf("(%d,%d,%d)", p[0], p[1], p[2])
}

// Add returns the sum of the two points.
func (p Point3d) Add(p2 Point3d) Point3d {
	return Point3d{p[0] + p2[0], p[1] + p2[1], p[2] + p2[2]}
}

// Neighbor returns the point one step further along the axis.
func (p Point3d) Neighbor(a Axis) Point3d {
	n := p
	n[a]++
	return n
}

// Prod returns the product of the point elements as a voxel count.
func (p Point3d) Prod() int64 {
	return int64(p[0]) * int64(p[1]) * int64(p[2])
}

// StringToPoint3d parses a string of the format "%d<sep>%d<sep>%d".
func StringToPoint3d(str, separator string) (Point3d, error) {
	elems := strings.Split(str, separator)
	if len(elems) != 3 {
		return Point3d{}, fmt.Errorf("cannot convert %q into a 3d point", str)
	}
	var p Point3d
	for i, elem := range elems {
		v, err := strconv.ParseInt(strings.TrimSpace(elem), 10, 32)
		if err != nil {
			return Point3d{}, fmt.Errorf("cannot convert %q into a 3d point: %v", str, err)
		}
		p[i] = int32(v)
	}
	return p, nil
}
