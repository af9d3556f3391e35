// types.go
package vulkango

/*
#include <vulkan/vulkan.h>
*/
import "C"

import "fmt"

type Result int32

const (
	SUCCESS               Result = C.VK_SUCCESS
	NOT_READY             Result = C.VK_NOT_READY
	TIMEOUT               Result = C.VK_TIMEOUT
	INCOMPLETE            Result = C.VK_INCOMPLETE
	OUT_OF_HOST_MEMORY    Result = C.VK_ERROR_OUT_OF_HOST_MEMORY
	OUT_OF_DEVICE_MEMORY  Result = C.VK_ERROR_OUT_OF_DEVICE_MEMORY
	INITIALIZATION_FAILED Result = C.VK_ERROR_INITIALIZATION_FAILED
	DEVICE_LOST           Result = C.VK_ERROR_DEVICE_LOST
	MEMORY_MAP_FAILED     Result = C.VK_ERROR_MEMORY_MAP_FAILED
	LAYER_NOT_PRESENT     Result = C.VK_ERROR_LAYER_NOT_PRESENT
	EXTENSION_NOT_PRESENT Result = C.VK_ERROR_EXTENSION_NOT_PRESENT
	FEATURE_NOT_PRESENT   Result = C.VK_ERROR_FEATURE_NOT_PRESENT
	INCOMPATIBLE_DRIVER   Result = C.VK_ERROR_INCOMPATIBLE_DRIVER
	FORMAT_NOT_SUPPORTED  Result = C.VK_ERROR_FORMAT_NOT_SUPPORTED
	OUT_OF_POOL_MEMORY    Result = C.VK_ERROR_OUT_OF_POOL_MEMORY
	SURFACE_LOST          Result = C.VK_ERROR_SURFACE_LOST_KHR
	NATIVE_WINDOW_IN_USE  Result = C.VK_ERROR_NATIVE_WINDOW_IN_USE_KHR
	SUBOPTIMAL            Result = C.VK_SUBOPTIMAL_KHR
	OUT_OF_DATE           Result = C.VK_ERROR_OUT_OF_DATE_KHR
	VALIDATION_FAILED     Result = C.VK_ERROR_VALIDATION_FAILED_EXT
)

func (r Result) Error() string {
	switch r {
	case SUCCESS:
		return "SUCCESS"
	case NOT_READY:
		return "NOT READY"
	case TIMEOUT:
		return "TIMEOUT"
	case INCOMPLETE:
		return "INCOMPLETE"
	case OUT_OF_HOST_MEMORY:
		return "OUT OF HOST MEMORY"
	case OUT_OF_DEVICE_MEMORY:
		return "OUT OF DEVICE MEMORY"
	case INITIALIZATION_FAILED:
		return "INITIALIZATION FAILED"
	case DEVICE_LOST:
		return "DEVICE LOST"
	case MEMORY_MAP_FAILED:
		return "MEMORY MAP FAILED"
	case LAYER_NOT_PRESENT:
		return "LAYER NOT PRESENT"
	case EXTENSION_NOT_PRESENT:
		return "EXTENSION NOT PRESENT"
	case FEATURE_NOT_PRESENT:
		return "FEATURE NOT PRESENT"
	case INCOMPATIBLE_DRIVER:
		return "INCOMPATIBLE DRIVER"
	case FORMAT_NOT_SUPPORTED:
		return "FORMAT NOT SUPPORTED"
	case OUT_OF_POOL_MEMORY:
		return "OUT OF POOL MEMORY"
	case SURFACE_LOST:
		return "SURFACE LOST"
	case NATIVE_WINDOW_IN_USE:
		return "NATIVE WINDOW IN USE"
	case SUBOPTIMAL:
		return "SUBOPTIMAL"
	case OUT_OF_DATE:
		return "OUT OF DATE"
	case VALIDATION_FAILED:
		return "VALIDATION FAILED"
	default:
		return fmt.Sprintf("VkResult(%d)", int32(r))
	}
}

type Extent2D struct {
	Width  uint32
	Height uint32
}

type Extent3D struct {
	Width  uint32
	Height uint32
	Depth  uint32
}

type Offset2D struct {
	X int32
	Y int32
}

type Rect2D struct {
	Offset Offset2D
	Extent Extent2D
}

type Viewport struct {
	X        float32
	Y        float32
	Width    float32
	Height   float32
	MinDepth float32
	MaxDepth float32
}

type Format int32

const (
	FORMAT_UNDEFINED           Format = C.VK_FORMAT_UNDEFINED
	FORMAT_R8G8B8A8_UNORM      Format = C.VK_FORMAT_R8G8B8A8_UNORM
	FORMAT_R8G8B8A8_SRGB       Format = C.VK_FORMAT_R8G8B8A8_SRGB
	FORMAT_B8G8R8A8_UNORM      Format = C.VK_FORMAT_B8G8R8A8_UNORM
	FORMAT_B8G8R8A8_SRGB       Format = C.VK_FORMAT_B8G8R8A8_SRGB
	FORMAT_R32G32_SFLOAT       Format = C.VK_FORMAT_R32G32_SFLOAT
	FORMAT_R32G32B32_SFLOAT    Format = C.VK_FORMAT_R32G32B32_SFLOAT
	FORMAT_R32G32B32A32_SFLOAT Format = C.VK_FORMAT_R32G32B32A32_SFLOAT
	FORMAT_D32_SFLOAT          Format = C.VK_FORMAT_D32_SFLOAT
	FORMAT_D32_SFLOAT_S8_UINT  Format = C.VK_FORMAT_D32_SFLOAT_S8_UINT
	FORMAT_D24_UNORM_S8_UINT   Format = C.VK_FORMAT_D24_UNORM_S8_UINT
)

// HasStencil reports whether a depth format carries a stencil aspect.
func (f Format) HasStencil() bool {
	return f == FORMAT_D32_SFLOAT_S8_UINT || f == FORMAT_D24_UNORM_S8_UINT
}

type FormatFeatureFlags uint32

const (
	FORMAT_FEATURE_DEPTH_STENCIL_ATTACHMENT_BIT FormatFeatureFlags = C.VK_FORMAT_FEATURE_DEPTH_STENCIL_ATTACHMENT_BIT
	FORMAT_FEATURE_SAMPLED_IMAGE_BIT            FormatFeatureFlags = C.VK_FORMAT_FEATURE_SAMPLED_IMAGE_BIT
)

type FormatProperties struct {
	LinearTilingFeatures  FormatFeatureFlags
	OptimalTilingFeatures FormatFeatureFlags
	BufferFeatures        FormatFeatureFlags
}

type SampleCountFlags uint32

const (
	SAMPLE_COUNT_1_BIT SampleCountFlags = C.VK_SAMPLE_COUNT_1_BIT
)

type ShaderStageFlags uint32

const (
	SHADER_STAGE_VERTEX_BIT   ShaderStageFlags = C.VK_SHADER_STAGE_VERTEX_BIT
	SHADER_STAGE_FRAGMENT_BIT ShaderStageFlags = C.VK_SHADER_STAGE_FRAGMENT_BIT
	SHADER_STAGE_ALL_GRAPHICS ShaderStageFlags = C.VK_SHADER_STAGE_ALL_GRAPHICS
)

type CompareOp int32

const (
	COMPARE_OP_NEVER  CompareOp = C.VK_COMPARE_OP_NEVER
	COMPARE_OP_LESS   CompareOp = C.VK_COMPARE_OP_LESS
	COMPARE_OP_ALWAYS CompareOp = C.VK_COMPARE_OP_ALWAYS
	COMPARE_OP_LEQUAL CompareOp = C.VK_COMPARE_OP_LESS_OR_EQUAL
)

func boolToVk(b bool) C.VkBool32 {
	if b {
		return C.VK_TRUE
	}
	return C.VK_FALSE
}
