package math

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMat4IdentityMul(t *testing.T) {
	id := NewMat4Identity()
	trans := NewMat4Translation(NewVec3(1, 2, 3))
	assert.Equal(t, trans, id.Mul(trans))
	assert.Equal(t, trans, trans.Mul(id))
}

func TestTransformPoint(t *testing.T) {
	trans := NewMat4Translation(NewVec3(1, 2, 3))
	p := NewVec3(1, 1, 1).TransformPoint(trans)
	assert.InDelta(t, 2.0, p.X, 1e-6)
	assert.InDelta(t, 3.0, p.Y, 1e-6)
	assert.InDelta(t, 4.0, p.Z, 1e-6)

	// Directions ignore translation.
	d := NewVec3(1, 0, 0).TransformDirection(trans)
	assert.InDelta(t, 1.0, d.X, 1e-6)
	assert.InDelta(t, 0.0, d.Y, 1e-6)
}

func TestRotationYQuarterTurn(t *testing.T) {
	rot := NewMat4RotationY(DegToRad(90))
	p := NewVec3(1, 0, 0).TransformPoint(rot)
	assert.InDelta(t, 0.0, p.X, 1e-6)
	assert.InDelta(t, -1.0, p.Z, 1e-6)
}

func TestVec3Normalized(t *testing.T) {
	v := NewVec3(3, 0, 4).Normalized()
	assert.InDelta(t, 1.0, v.Length(), 1e-6)

	// Zero vector stays put instead of producing NaNs.
	z := NewVec3Zero().Normalized()
	assert.Equal(t, NewVec3Zero(), z)
}

func TestLookAtMovesEyeToOrigin(t *testing.T) {
	view := NewMat4LookAt(NewVec3(0, 0, 5), NewVec3Zero(), NewVec3Up())
	p := NewVec3(0, 0, 5).TransformPoint(view)
	assert.InDelta(t, 0.0, p.X, 1e-5)
	assert.InDelta(t, 0.0, p.Y, 1e-5)
	assert.InDelta(t, 0.0, p.Z, 1e-5)
}
