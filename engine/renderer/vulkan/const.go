package vulkan

import "math"

// NoTimeout is used for every steady-state GPU wait. A hung device stalls
// the process; bounded timeouts are a deliberate non-feature here.
const NoTimeout uint64 = math.MaxUint64

// Number of G-buffer color attachments written by the geometry subpass:
// position, normal, tangent, uv+material-id.
const GBufferAttachmentCount = 4
