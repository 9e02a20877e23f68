package service

import (
	"bytes"
	"fmt"
	"os"

	"github.com/vmihailenco/msgpack/v5"
)

// Assembly is the in-memory form of an assembly file. Only the envelope is
// known to the launcher; Code is owned by the VM module.
type Assembly struct {
	Name         string   `msgpack:"name"`
	Version      string   `msgpack:"version,omitempty"`
	Dependencies []string `msgpack:"dependencies,omitempty"`
	Code         []byte   `msgpack:"code"`
}

// AssemblyDecoder turns an assembly file into an Assembly.
type AssemblyDecoder interface {
	DecodeFile(path string) (*Assembly, error)
}

// FileDecoder reads assembly envelopes from disk.
type FileDecoder struct{}

var _ AssemblyDecoder = FileDecoder{}

// DecodeFile implements AssemblyDecoder.
func (FileDecoder) DecodeFile(path string) (*Assembly, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("service: reading assembly %s: %w: %w", path, ErrAssemblyDecode, err)
	}
	a, err := DecodeAssembly(b)
	if err != nil {
		return nil, fmt.Errorf("service: assembly %s: %w", path, err)
	}
	return a, nil
}

// DecodeAssembly decodes one msgpack assembly envelope.
func DecodeAssembly(b []byte) (*Assembly, error) {
	dec := msgpack.NewDecoder(bytes.NewReader(b))
	dec.DisallowUnknownFields(true)

	var a Assembly
	if err := dec.Decode(&a); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrAssemblyDecode, err)
	}
	if a.Name == "" {
		return nil, fmt.Errorf("%w: missing assembly name", ErrAssemblyDecode)
	}
	return &a, nil
}

// EncodeAssembly is the inverse of DecodeAssembly.
func EncodeAssembly(a *Assembly) ([]byte, error) {
	return msgpack.Marshal(a)
}

// EncodeAssemblies encodes the batch handed to an assembly manager across a
// module boundary.
func EncodeAssemblies(assemblies []*Assembly) ([]byte, error) {
	b, err := msgpack.Marshal(assemblies)
	if err != nil {
		return nil, fmt.Errorf("service: encoding assemblies: %w", err)
	}
	return b, nil
}

// RunRequest is the wire form of CPU.Run arguments across a module boundary.
type RunRequest struct {
	Assembly string   `msgpack:"assembly"`
	Class    string   `msgpack:"class"`
	Args     []string `msgpack:"args"`
}

// Encode returns the msgpack encoding of r.
func (r RunRequest) Encode() ([]byte, error) {
	b, err := msgpack.Marshal(r)
	if err != nil {
		return nil, fmt.Errorf("service: encoding run request: %w", err)
	}
	return b, nil
}

// DecodeAssemblies is the inverse of EncodeAssemblies.
func DecodeAssemblies(b []byte) ([]*Assembly, error) {
	var assemblies []*Assembly
	if err := msgpack.Unmarshal(b, &assemblies); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrAssemblyDecode, err)
	}
	return assemblies, nil
}

// DecodeRunRequest is the inverse of RunRequest.Encode.
func DecodeRunRequest(b []byte) (RunRequest, error) {
	var r RunRequest
	if err := msgpack.Unmarshal(b, &r); err != nil {
		return RunRequest{}, fmt.Errorf("service: decoding run request: %w", err)
	}
	return r, nil
}
