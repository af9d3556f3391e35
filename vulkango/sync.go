// sync.go
package vulkango

/*
#include <vulkan/vulkan.h>
#include <stdlib.h>
*/
import "C"
import "unsafe"

type Semaphore struct {
	handle C.VkSemaphore
}

type Fence struct {
	handle C.VkFence
}

type SemaphoreCreateInfo struct {
	Flags uint32
}

type FenceCreateInfo struct {
	Flags FenceCreateFlags
}

type FenceCreateFlags uint32

const (
	FENCE_CREATE_SIGNALED_BIT FenceCreateFlags = C.VK_FENCE_CREATE_SIGNALED_BIT
)

func (device Device) CreateSemaphore(createInfo *SemaphoreCreateInfo) (Semaphore, error) {
	cInfo := (*C.VkSemaphoreCreateInfo)(C.calloc(1, C.sizeof_VkSemaphoreCreateInfo))
	defer C.free(unsafe.Pointer(cInfo))

	cInfo.sType = C.VK_STRUCTURE_TYPE_SEMAPHORE_CREATE_INFO
	cInfo.flags = C.VkSemaphoreCreateFlags(createInfo.Flags)

	var semaphore C.VkSemaphore
	result := C.vkCreateSemaphore(device.handle, cInfo, nil, &semaphore)

	if result != C.VK_SUCCESS {
		return Semaphore{}, Result(result)
	}

	return Semaphore{handle: semaphore}, nil
}

func (device Device) DestroySemaphore(semaphore Semaphore) {
	C.vkDestroySemaphore(device.handle, semaphore.handle, nil)
}

func (device Device) CreateFence(createInfo *FenceCreateInfo) (Fence, error) {
	cInfo := (*C.VkFenceCreateInfo)(C.calloc(1, C.sizeof_VkFenceCreateInfo))
	defer C.free(unsafe.Pointer(cInfo))

	cInfo.sType = C.VK_STRUCTURE_TYPE_FENCE_CREATE_INFO
	cInfo.flags = C.VkFenceCreateFlags(createInfo.Flags)

	var fence C.VkFence
	result := C.vkCreateFence(device.handle, cInfo, nil, &fence)

	if result != C.VK_SUCCESS {
		return Fence{}, Result(result)
	}

	return Fence{handle: fence}, nil
}

func (device Device) DestroyFence(fence Fence) {
	C.vkDestroyFence(device.handle, fence.handle, nil)
}

func (device Device) WaitForFences(fences []Fence, waitAll bool, timeout uint64) error {
	if len(fences) == 0 {
		return nil
	}

	cFences := make([]C.VkFence, len(fences))
	for i, fence := range fences {
		cFences[i] = fence.handle
	}

	result := C.vkWaitForFences(device.handle, C.uint32_t(len(cFences)), &cFences[0], boolToVk(waitAll), C.uint64_t(timeout))

	// TIMEOUT is returned as an error so callers can tell a hung GPU from a signalled fence.
	if result != C.VK_SUCCESS {
		return Result(result)
	}

	return nil
}

func (device Device) ResetFences(fences []Fence) error {
	if len(fences) == 0 {
		return nil
	}

	cFences := make([]C.VkFence, len(fences))
	for i, fence := range fences {
		cFences[i] = fence.handle
	}

	result := C.vkResetFences(device.handle, C.uint32_t(len(cFences)), &cFences[0])

	if result != C.VK_SUCCESS {
		return Result(result)
	}

	return nil
}

type SubmitInfo struct {
	WaitSemaphores   []Semaphore
	WaitDstStageMask []PipelineStageFlags
	CommandBuffers   []CommandBuffer
	SignalSemaphores []Semaphore
}

func callocArray(n int, size uintptr) unsafe.Pointer {
	return C.calloc(C.size_t(n), C.size_t(size))
}

func (queue Queue) Submit(submits []SubmitInfo, fence Fence) error {
	if len(submits) == 0 {
		return nil
	}

	cSubmits := unsafe.Slice((*C.VkSubmitInfo)(callocArray(len(submits), C.sizeof_VkSubmitInfo)), len(submits))
	allocations := []unsafe.Pointer{unsafe.Pointer(&cSubmits[0])}
	defer func() {
		for _, ptr := range allocations {
			C.free(ptr)
		}
	}()

	for i, submit := range submits {
		cSubmits[i].sType = C.VK_STRUCTURE_TYPE_SUBMIT_INFO

		if len(submit.WaitSemaphores) > 0 {
			if len(submit.WaitDstStageMask) != len(submit.WaitSemaphores) {
				return Result(C.VK_ERROR_INITIALIZATION_FAILED)
			}
			waitSems := unsafe.Slice((*C.VkSemaphore)(callocArray(len(submit.WaitSemaphores), C.sizeof_VkSemaphore)), len(submit.WaitSemaphores))
			waitStages := unsafe.Slice((*C.VkPipelineStageFlags)(callocArray(len(submit.WaitDstStageMask), C.sizeof_VkPipelineStageFlags)), len(submit.WaitDstStageMask))
			allocations = append(allocations, unsafe.Pointer(&waitSems[0]), unsafe.Pointer(&waitStages[0]))

			for j, sem := range submit.WaitSemaphores {
				waitSems[j] = sem.handle
			}
			for j, stage := range submit.WaitDstStageMask {
				waitStages[j] = C.VkPipelineStageFlags(stage)
			}

			cSubmits[i].waitSemaphoreCount = C.uint32_t(len(waitSems))
			cSubmits[i].pWaitSemaphores = &waitSems[0]
			cSubmits[i].pWaitDstStageMask = &waitStages[0]
		}

		if len(submit.CommandBuffers) > 0 {
			cmdBufs := unsafe.Slice((*C.VkCommandBuffer)(callocArray(len(submit.CommandBuffers), C.sizeof_VkCommandBuffer)), len(submit.CommandBuffers))
			allocations = append(allocations, unsafe.Pointer(&cmdBufs[0]))

			for j, cmd := range submit.CommandBuffers {
				cmdBufs[j] = cmd.handle
			}

			cSubmits[i].commandBufferCount = C.uint32_t(len(cmdBufs))
			cSubmits[i].pCommandBuffers = &cmdBufs[0]
		}

		if len(submit.SignalSemaphores) > 0 {
			sigSems := unsafe.Slice((*C.VkSemaphore)(callocArray(len(submit.SignalSemaphores), C.sizeof_VkSemaphore)), len(submit.SignalSemaphores))
			allocations = append(allocations, unsafe.Pointer(&sigSems[0]))

			for j, sem := range submit.SignalSemaphores {
				sigSems[j] = sem.handle
			}

			cSubmits[i].signalSemaphoreCount = C.uint32_t(len(sigSems))
			cSubmits[i].pSignalSemaphores = &sigSems[0]
		}
	}

	result := C.vkQueueSubmit(queue.handle, C.uint32_t(len(cSubmits)), &cSubmits[0], fence.handle)

	if result != C.VK_SUCCESS {
		return Result(result)
	}

	return nil
}

func (queue Queue) WaitIdle() error {
	result := C.vkQueueWaitIdle(queue.handle)
	if result != C.VK_SUCCESS {
		return Result(result)
	}
	return nil
}

type PresentInfoKHR struct {
	WaitSemaphores []Semaphore
	Swapchains     []SwapchainKHR
	ImageIndices   []uint32
}

// PresentKHR queues the images for presentation. SUBOPTIMAL is reported in
// the returned Result with a nil error; OUT_OF_DATE and every other failure
// come back as the error.
func (queue Queue) PresentKHR(presentInfo *PresentInfoKHR) (Result, error) {
	cInfo := (*C.VkPresentInfoKHR)(C.calloc(1, C.sizeof_VkPresentInfoKHR))
	defer C.free(unsafe.Pointer(cInfo))

	cInfo.sType = C.VK_STRUCTURE_TYPE_PRESENT_INFO_KHR

	if n := len(presentInfo.WaitSemaphores); n > 0 {
		waitSemaphores := make([]C.VkSemaphore, n)
		for i, sem := range presentInfo.WaitSemaphores {
			waitSemaphores[i] = sem.handle
		}
		cInfo.waitSemaphoreCount = C.uint32_t(n)
		cInfo.pWaitSemaphores = &waitSemaphores[0]
	}

	if n := len(presentInfo.Swapchains); n > 0 {
		swapchains := make([]C.VkSwapchainKHR, n)
		for i, sc := range presentInfo.Swapchains {
			swapchains[i] = sc.handle
		}
		cInfo.swapchainCount = C.uint32_t(n)
		cInfo.pSwapchains = &swapchains[0]
	}

	if n := len(presentInfo.ImageIndices); n > 0 {
		imageIndices := make([]C.uint32_t, n)
		for i, idx := range presentInfo.ImageIndices {
			imageIndices[i] = C.uint32_t(idx)
		}
		cInfo.pImageIndices = &imageIndices[0]
	}

	result := C.vkQueuePresentKHR(queue.handle, cInfo)

	switch result {
	case C.VK_SUCCESS, C.VK_SUBOPTIMAL_KHR:
		return Result(result), nil
	default:
		return Result(result), Result(result)
	}
}

// AcquireNextImageKHR follows the same convention as PresentKHR: SUBOPTIMAL
// still yields a usable image index.
func (device Device) AcquireNextImageKHR(swapchain SwapchainKHR, timeout uint64, semaphore Semaphore, fence Fence) (uint32, Result, error) {
	var imageIndex C.uint32_t

	result := C.vkAcquireNextImageKHR(device.handle, swapchain.handle, C.uint64_t(timeout), semaphore.handle, fence.handle, &imageIndex)

	switch result {
	case C.VK_SUCCESS, C.VK_SUBOPTIMAL_KHR:
		return uint32(imageIndex), Result(result), nil
	default:
		return 0, Result(result), Result(result)
	}
}
