package shaderc

/*
#cgo pkg-config: shaderc
#include <shaderc/shaderc.h>
#include <stdlib.h>
*/
import "C"
import (
	"fmt"
	"unsafe"
)

type Compiler struct {
	handle C.shaderc_compiler_t
}

type CompileOptions struct {
	handle C.shaderc_compile_options_t
}

type ShaderKind int

const (
	VertexShader   ShaderKind = C.shaderc_vertex_shader
	FragmentShader ShaderKind = C.shaderc_fragment_shader
	ComputeShader  ShaderKind = C.shaderc_compute_shader
)

func (k ShaderKind) String() string {
	switch k {
	case VertexShader:
		return "vertex"
	case FragmentShader:
		return "fragment"
	case ComputeShader:
		return "compute"
	default:
		return fmt.Sprintf("ShaderKind(%d)", int(k))
	}
}

type CompilationResult struct {
	handle C.shaderc_compilation_result_t
}

// CompileError carries the compiler log of a failed compilation.
type CompileError struct {
	Filename string
	Kind     ShaderKind
	Log      string
}

func (e *CompileError) Error() string {
	return fmt.Sprintf("shaderc: %s shader %q failed to compile: %s", e.Kind, e.Filename, e.Log)
}

func NewCompiler() Compiler {
	return Compiler{handle: C.shaderc_compiler_initialize()}
}

func (c Compiler) Release() {
	C.shaderc_compiler_release(c.handle)
}

func NewCompileOptions() CompileOptions {
	return CompileOptions{handle: C.shaderc_compile_options_initialize()}
}

func (o CompileOptions) Release() {
	C.shaderc_compile_options_release(o.handle)
}

func (o CompileOptions) SetTargetEnv(env int, version uint32) {
	C.shaderc_compile_options_set_target_env(
		o.handle,
		C.shaderc_target_env(env),
		C.uint32_t(version),
	)
}

func (o CompileOptions) SetOptimizationLevel(level int) {
	C.shaderc_compile_options_set_optimization_level(
		o.handle,
		C.shaderc_optimization_level(level),
	)
}

// AddMacroDefinition defines name=value for the preprocessor. An empty value defines name with no body.
func (o CompileOptions) AddMacroDefinition(name, value string) {
	cName := C.CString(name)
	defer C.free(unsafe.Pointer(cName))

	if value == "" {
		C.shaderc_compile_options_add_macro_definition(o.handle, cName, C.size_t(len(name)), nil, 0)
		return
	}

	cValue := C.CString(value)
	defer C.free(unsafe.Pointer(cValue))
	C.shaderc_compile_options_add_macro_definition(o.handle, cName, C.size_t(len(name)), cValue, C.size_t(len(value)))
}

const (
	TargetEnvVulkan              = C.shaderc_target_env_vulkan
	EnvVersionVulkan_1_3         = C.shaderc_env_version_vulkan_1_3
	OptimizationLevelZero        = C.shaderc_optimization_level_zero
	OptimizationLevelPerformance = C.shaderc_optimization_level_performance
)

func (c Compiler) CompileIntoSPV(source, filename, entryPoint string, kind ShaderKind, options CompileOptions) (CompilationResult, error) {
	cSource := C.CString(source)
	cFilename := C.CString(filename)
	cEntry := C.CString(entryPoint)
	defer C.free(unsafe.Pointer(cSource))
	defer C.free(unsafe.Pointer(cFilename))
	defer C.free(unsafe.Pointer(cEntry))

	result := C.shaderc_compile_into_spv(
		c.handle,
		cSource,
		C.size_t(len(source)),
		C.shaderc_shader_kind(kind),
		cFilename,
		cEntry,
		options.handle,
	)

	status := C.shaderc_result_get_compilation_status(result)
	if status != C.shaderc_compilation_status_success {
		log := C.GoString(C.shaderc_result_get_error_message(result))
		C.shaderc_result_release(result)
		return CompilationResult{}, &CompileError{Filename: filename, Kind: kind, Log: log}
	}

	return CompilationResult{handle: result}, nil
}

func (r CompilationResult) GetBytes() []byte {
	ptr := C.shaderc_result_get_bytes(r.handle)
	length := C.shaderc_result_get_length(r.handle)

	return C.GoBytes(unsafe.Pointer(ptr), C.int(length))
}

func (r CompilationResult) Release() {
	C.shaderc_result_release(r.handle)
}

// CompileGLSL compiles a GLSL source with entry point "main" for Vulkan 1.3 and returns the SPIR-V words as bytes.
func CompileGLSL(source, filename string, kind ShaderKind, defines map[string]string) ([]byte, error) {
	compiler := NewCompiler()
	defer compiler.Release()

	options := NewCompileOptions()
	defer options.Release()

	options.SetTargetEnv(TargetEnvVulkan, EnvVersionVulkan_1_3)
	options.SetOptimizationLevel(OptimizationLevelPerformance)
	for name, value := range defines {
		options.AddMacroDefinition(name, value)
	}

	result, err := compiler.CompileIntoSPV(source, filename, "main", kind, options)
	if err != nil {
		return nil, err
	}
	defer result.Release()

	return result.GetBytes(), nil
}
