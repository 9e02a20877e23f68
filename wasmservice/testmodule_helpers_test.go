package wasmservice

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/purelang/launcher/runtime"
)

const (
	i32 byte = 0x7f
	i64 byte = 0x7e
)

// Host imports available to test modules, in import index order.
const (
	importOutputPath = iota
	importSetStatusReason
	importSetExitCode
	importLogMessage
	importCount
)

var testImports = []wasmImportSpec{
	{name: outputPath, params: []byte{i32, i32, i32, i32}, results: []byte{i32}},
	{name: setStatusReason, params: []byte{i32, i32}},
	{name: setExitCode, params: []byte{i64}},
	{name: logMessage, params: []byte{i32, i32}},
}

type wasmImportSpec struct {
	name    string
	params  []byte
	results []byte
}

type wasmFunctionSpec struct {
	name    string
	params  []byte
	results []byte
	// body holds instructions without the local declarations and the end opcode.
	body []byte
}

type wasmDataSpec struct {
	offset uint32
	bytes  []byte
}

type wasmModuleDef struct {
	noMemory  bool
	noImports bool
	functions []wasmFunctionSpec
	data      []wasmDataSpec
}

func writeTempModule(t *testing.T, module []byte) string {
	t.Helper()

	dir := t.TempDir()
	path := filepath.Join(dir, "service.wasm")
	if err := os.WriteFile(path, module, 0o600); err != nil {
		t.Fatalf("failed to write test module: %v", err)
	}
	return path
}

// openRawInstance loads def with the service host module but without the
// checks Open performs.
func openRawInstance(t *testing.T, def wasmModuleDef) runtime.Instance {
	t.Helper()

	ctx := context.Background()
	rt, err := runtime.NewRuntime(runtime.TypeWazero, nil)
	require.NoError(t, err)
	t.Cleanup(func() { rt.Close(ctx) })

	instance, err := rt.Load(ctx, buildTestModule(def), serviceHostModule())
	require.NoError(t, err)
	t.Cleanup(func() { instance.Close(ctx) })
	return instance
}

func buildTestModule(def wasmModuleDef) []byte {
	module := []byte{
		0x00, 0x61, 0x73, 0x6d, // magic
		0x01, 0x00, 0x00, 0x00, // version
	}

	appendSection := func(sectionID byte, payload []byte) {
		module = append(module, sectionID)
		module = append(module, encodeULEB128Test(uint32(len(payload)))...)
		module = append(module, payload...)
	}
	appendName := func(payload []byte, name string) []byte {
		payload = append(payload, encodeULEB128Test(uint32(len(name)))...)
		return append(payload, name...)
	}
	funcType := func(params, results []byte) []byte {
		out := []byte{0x60}
		out = append(out, encodeULEB128Test(uint32(len(params)))...)
		out = append(out, params...)
		out = append(out, encodeULEB128Test(uint32(len(results)))...)
		return append(out, results...)
	}

	var imports []wasmImportSpec
	if !def.noImports {
		imports = testImports
	}

	// Type section: one type per import followed by one type per function.
	typePayload := encodeULEB128Test(uint32(len(imports) + len(def.functions)))
	for _, imp := range imports {
		typePayload = append(typePayload, funcType(imp.params, imp.results)...)
	}
	for _, fn := range def.functions {
		typePayload = append(typePayload, funcType(fn.params, fn.results)...)
	}
	appendSection(0x01, typePayload)

	if len(imports) > 0 {
		importPayload := encodeULEB128Test(uint32(len(imports)))
		for i, imp := range imports {
			importPayload = appendName(importPayload, hostModuleName)
			importPayload = appendName(importPayload, imp.name)
			importPayload = append(importPayload, 0x00) // import kind: func
			importPayload = append(importPayload, encodeULEB128Test(uint32(i))...)
		}
		appendSection(0x02, importPayload)
	}

	// Function section
	funcPayload := encodeULEB128Test(uint32(len(def.functions)))
	for i := range def.functions {
		funcPayload = append(funcPayload, encodeULEB128Test(uint32(len(imports)+i))...)
	}
	appendSection(0x03, funcPayload)

	if !def.noMemory {
		// Memory section: one memory, min 1 page.
		appendSection(0x05, []byte{
			0x01, // 1 memory
			0x00, // only min limit
			0x01, // min 1 page
		})
	}

	// Export section
	exportCount := len(def.functions)
	if !def.noMemory {
		exportCount++
	}
	exportPayload := encodeULEB128Test(uint32(exportCount))
	if !def.noMemory {
		exportPayload = appendName(exportPayload, "memory")
		exportPayload = append(exportPayload, 0x02, 0x00) // memory index 0
	}
	for i, fn := range def.functions {
		exportPayload = appendName(exportPayload, fn.name)
		exportPayload = append(exportPayload, 0x00) // export kind: func
		exportPayload = append(exportPayload, encodeULEB128Test(uint32(len(imports)+i))...)
	}
	appendSection(0x07, exportPayload)

	// Code section
	codePayload := encodeULEB128Test(uint32(len(def.functions)))
	for _, fn := range def.functions {
		body := append([]byte{0x00}, fn.body...) // no locals
		body = append(body, 0x0b)               // end
		codePayload = append(codePayload, encodeULEB128Test(uint32(len(body)))...)
		codePayload = append(codePayload, body...)
	}
	appendSection(0x0a, codePayload)

	if len(def.data) > 0 {
		dataPayload := encodeULEB128Test(uint32(len(def.data)))
		for _, d := range def.data {
			dataPayload = append(dataPayload, 0x00) // active, memory 0
			dataPayload = append(dataPayload, i32Const(int32(d.offset))...)
			dataPayload = append(dataPayload, 0x0b)
			dataPayload = append(dataPayload, encodeULEB128Test(uint32(len(d.bytes)))...)
			dataPayload = append(dataPayload, d.bytes...)
		}
		appendSection(0x0b, dataPayload)
	}

	return module
}

func encodeULEB128Test(v uint32) []byte {
	var out []byte
	for {
		b := byte(v & 0x7f)
		v >>= 7
		if v != 0 {
			b |= 0x80
		}
		out = append(out, b)
		if v == 0 {
			return out
		}
	}
}

func encodeSLEB128Test(v int64) []byte {
	var out []byte
	for {
		b := byte(v & 0x7f)
		v >>= 7
		done := (v == 0 && b&0x40 == 0) || (v == -1 && b&0x40 != 0)
		if !done {
			b |= 0x80
		}
		out = append(out, b)
		if done {
			return out
		}
	}
}

func i32Const(v int32) []byte {
	return append([]byte{0x41}, encodeSLEB128Test(int64(v))...)
}

func i64Const(v int64) []byte {
	return append([]byte{0x42}, encodeSLEB128Test(v)...)
}

func callImport(idx int) []byte {
	return append([]byte{0x10}, encodeULEB128Test(uint32(idx))...)
}

func concat(parts ...[]byte) []byte {
	var out []byte
	for _, p := range parts {
		out = append(out, p...)
	}
	return out
}

// returns builds a function returning the constant v.
func returns(name string, params []byte, v int32) wasmFunctionSpec {
	return wasmFunctionSpec{name: name, params: params, results: []byte{i32}, body: i32Const(v)}
}

// Memory layout used by test modules.
const (
	allocOffset  = 1024
	dataOffset   = 64
	outputOffset = 256
	outputLimit  = 64
)

// baseFunctions are the exports every service module carries.
func baseFunctions() []wasmFunctionSpec {
	return []wasmFunctionSpec{
		{name: abiVersionV1MarkerExport},
		returns(allocFunction, []byte{i32}, allocOffset),
	}
}

// setReason sets the status reason to the data segment at dataOffset.
func setReason(reason string) []byte {
	return concat(i32Const(dataOffset), i32Const(int32(len(reason))), callImport(importSetStatusReason))
}
