package vulkan

import (
	"fmt"
	"runtime"
	"unsafe"

	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/grove/engine/core"
	"github.com/spaghettifunk/grove/engine/renderer/gpu"
)

// WindowSurface is what the platform layer hands in as a gpu.Surface.
// *glfw.Window satisfies it.
type WindowSurface interface {
	CreateWindowSurface(instance interface{}, allocCallbacks unsafe.Pointer) (uintptr, error)
}

type InstanceConfig struct {
	ApplicationName string
	// vkGetInstanceProcAddr as returned by the windowing library.
	ProcAddr unsafe.Pointer
	// Extensions the window system needs for presentation.
	Extensions []string
	Validation bool
}

type Instance struct {
	handle         vk.Instance
	debugMessenger vk.DebugReportCallback
	validation     bool
	physical       []vk.PhysicalDevice
}

func NewInstance(cfg InstanceConfig) (*Instance, error) {
	if cfg.ProcAddr == nil {
		err := fmt.Errorf("GetInstanceProcAddress is nil")
		core.LogError(err.Error())
		return nil, err
	}
	vk.SetGetInstanceProcAddr(cfg.ProcAddr)
	if err := vk.Init(); err != nil {
		core.LogError("failed to initialize vk: %s", err)
		return nil, err
	}

	appInfo := &vk.ApplicationInfo{
		SType:              vk.StructureTypeApplicationInfo,
		ApiVersion:         uint32(vk.MakeVersion(1, 0, 0)),
		ApplicationVersion: uint32(vk.MakeVersion(1, 0, 0)),
		PApplicationName:   VulkanSafeString(cfg.ApplicationName),
		PEngineName:        VulkanSafeString("Grove"),
	}
	createInfo := vk.InstanceCreateInfo{
		SType:            vk.StructureTypeInstanceCreateInfo,
		PApplicationInfo: appInfo,
	}

	extensions := append([]string{"VK_KHR_surface"}, cfg.Extensions...)
	if runtime.GOOS == "darwin" {
		extensions = append(extensions,
			"VK_KHR_portability_enumeration",
			"VK_KHR_get_physical_device_properties2",
		)
		// VK_INSTANCE_CREATE_ENUMERATE_PORTABILITY_BIT_KHR
		createInfo.Flags |= 1
	}

	var layers []string
	if cfg.Validation {
		extensions = append(extensions, vk.ExtDebugReportExtensionName)
		layers = []string{"VK_LAYER_KHRONOS_validation"}
		if err := requireLayers(layers); err != nil {
			return nil, err
		}
	}
	core.LogDebug("instance extensions: %v", extensions)

	createInfo.EnabledExtensionCount = uint32(len(extensions))
	createInfo.PpEnabledExtensionNames = VulkanSafeStrings(extensions)
	createInfo.EnabledLayerCount = uint32(len(layers))
	createInfo.PpEnabledLayerNames = VulkanSafeStrings(layers)

	inst := &Instance{validation: cfg.Validation}
	if err := check(vk.CreateInstance(&createInfo, nil, &inst.handle), "vkCreateInstance"); err != nil {
		return nil, err
	}
	if err := vk.InitInstance(inst.handle); err != nil {
		core.LogError(err.Error())
		return nil, err
	}
	core.LogInfo("Vulkan Instance created.")

	if cfg.Validation {
		debugCreateInfo := vk.DebugReportCallbackCreateInfo{
			SType:       vk.StructureTypeDebugReportCallbackCreateInfo,
			Flags:       vk.DebugReportFlags(vk.DebugReportErrorBit | vk.DebugReportWarningBit | vk.DebugReportPerformanceWarningBit),
			PfnCallback: dbgCallbackFunc,
		}
		if err := check(vk.CreateDebugReportCallback(inst.handle, &debugCreateInfo, nil, &inst.debugMessenger), "vkCreateDebugReportCallback"); err != nil {
			inst.Destroy()
			return nil, err
		}
		core.LogDebug("Vulkan debugger created.")
	}
	return inst, nil
}

func requireLayers(required []string) error {
	var count uint32
	if err := check(vk.EnumerateInstanceLayerProperties(&count, nil), "vkEnumerateInstanceLayerProperties"); err != nil {
		return err
	}
	available := make([]vk.LayerProperties, count)
	if err := check(vk.EnumerateInstanceLayerProperties(&count, available), "vkEnumerateInstanceLayerProperties"); err != nil {
		return err
	}
	for _, name := range required {
		found := false
		for i := range available {
			available[i].Deref()
			if cString(available[i].LayerName[:]) == name {
				found = true
				break
			}
		}
		if !found {
			err := fmt.Errorf("required validation layer is missing: %s", name)
			core.LogError(err.Error())
			return err
		}
	}
	return nil
}

// Adapters lists the physical devices. A device is supported when it has a
// graphics queue and the swapchain extension.
func (i *Instance) Adapters() ([]gpu.Adapter, error) {
	var count uint32
	if err := check(vk.EnumeratePhysicalDevices(i.handle, &count, nil), "vkEnumeratePhysicalDevices"); err != nil {
		return nil, err
	}
	i.physical = make([]vk.PhysicalDevice, count)
	if err := check(vk.EnumeratePhysicalDevices(i.handle, &count, i.physical), "vkEnumeratePhysicalDevices"); err != nil {
		return nil, err
	}

	adapters := make([]gpu.Adapter, 0, count)
	for idx, pd := range i.physical {
		var props vk.PhysicalDeviceProperties
		vk.GetPhysicalDeviceProperties(pd, &props)
		props.Deref()

		_, hasGraphics := graphicsFamilies(pd)
		adapters = append(adapters, gpu.Adapter{
			Index:     idx,
			Name:      cString(props.DeviceName[:]),
			Software:  props.DeviceType == vk.PhysicalDeviceTypeCpu,
			Supported: hasGraphics && hasExtension(pd, vk.KhrSwapchainExtensionName),
		})
	}
	return adapters, nil
}

func (i *Instance) CreateDevice(adapter gpu.Adapter, surface gpu.Surface) (gpu.Device, error) {
	if adapter.Index < 0 || adapter.Index >= len(i.physical) {
		return nil, fmt.Errorf("adapter %d does not exist", adapter.Index)
	}
	window, ok := surface.(WindowSurface)
	if !ok {
		return nil, fmt.Errorf("the vulkan backend needs a window surface, got %T", surface)
	}
	return newDevice(i, i.physical[adapter.Index], window)
}

func (i *Instance) Destroy() {
	if i.debugMessenger != nil {
		vk.DestroyDebugReportCallback(i.handle, i.debugMessenger, nil)
		i.debugMessenger = nil
	}
	if i.handle != nil {
		vk.DestroyInstance(i.handle, nil)
		i.handle = nil
	}
}

func dbgCallbackFunc(flags vk.DebugReportFlags, objectType vk.DebugReportObjectType, object uint64, location uint64, messageCode int32, pLayerPrefix string, pMessage string, pUserData unsafe.Pointer) vk.Bool32 {
	switch {
	case flags&vk.DebugReportFlags(vk.DebugReportErrorBit) != 0:
		core.LogError("ERROR: [%s] Code %d : %s", pLayerPrefix, messageCode, pMessage)
	case flags&vk.DebugReportFlags(vk.DebugReportWarningBit) != 0:
		core.LogWarn("WARNING: [%s] Code %d : %s", pLayerPrefix, messageCode, pMessage)
	case flags&vk.DebugReportFlags(vk.DebugReportPerformanceWarningBit) != 0:
		core.LogWarn("PERFORMANCE WARNING: [%s] Code %d : %s", pLayerPrefix, messageCode, pMessage)
	default:
		core.LogDebug("[%s] Code %d : %s", pLayerPrefix, messageCode, pMessage)
	}
	return vk.Bool32(vk.False)
}
