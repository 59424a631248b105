package renderer

import (
	"unsafe"

	"github.com/prismrender/prism/engine/renderer/metadata"
)

// PackedInstanceSize is the byte stride of one instance record in the GPU
// instance buffer.
const PackedInstanceSize = uint64(unsafe.Sizeof(metadata.PackedInstance{}))

// DrawRange locates one draw call's instances inside the flat per-frame
// instance buffer.
type DrawRange struct {
	Mesh          *metadata.Mesh
	ByteOffset    uint64
	FirstInstance uint32
	InstanceCount uint32
}

// BuildDrawRanges computes the prefix-sum offset table for the draw calls
// referenced by the snapshot's draw passes and flattens their instances into
// upload order. Calls that were registered but never attached to a pass are
// not uploaded; a call referenced by more than one pass contributes once.
// The returned byte size is the total the instance buffer must hold.
func BuildDrawRanges(dd *metadata.DrawData) ([]DrawRange, []metadata.PackedInstance, uint64) {
	calls := dd.DrawCalls()
	meshes := dd.Meshes()
	instances := dd.Instances()

	ranges := make([]DrawRange, 0, len(calls))
	flat := make([]metadata.PackedInstance, 0, len(instances))
	seen := make(map[metadata.DrawCallHandle]struct{}, len(calls))

	var cursor uint64
	for _, pass := range dd.Passes() {
		for _, ch := range pass.Calls {
			if _, dup := seen[ch]; dup {
				continue
			}
			seen[ch] = struct{}{}

			call := calls[ch]
			first := uint32(len(flat))
			for _, ih := range call.Instances {
				flat = append(flat, instances[ih])
			}
			count := uint32(len(flat)) - first
			ranges = append(ranges, DrawRange{
				Mesh:          meshes[call.Mesh],
				ByteOffset:    cursor,
				FirstInstance: first,
				InstanceCount: count,
			})
			cursor += uint64(count) * PackedInstanceSize
		}
	}
	return ranges, flat, cursor
}
