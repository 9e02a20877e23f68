package runtime

import "github.com/tetratelabs/wazero/api"

// HostFunction is a Go function a guest imports. Its signature uses wazero's
// value types and calling convention: params arrive in stack and results are
// written back to it.
type HostFunction struct {
	Name    string
	Params  []api.ValueType
	Results []api.ValueType
	Func    api.GoModuleFunc
}

// HostModule is a named set of host functions linked into every guest a
// Runtime loads.
type HostModule struct {
	Name      string
	Functions []HostFunction
}
