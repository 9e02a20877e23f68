package service

import "errors"

// Errors surfaced by the loader, the service backends and the pipelines. Callers
// match them with errors.Is; the wrapped message carries the detail.
var (
	ErrLoad                  = errors.New("service module load failed")
	ErrSymbolNotFound        = errors.New("entry point not found")
	ErrSignatureMismatch     = errors.New("entry point signature mismatch")
	ErrConfigParse           = errors.New("configuration parse failed")
	ErrUnsupportedConfigType = errors.New("unsupported configuration type")
	ErrPathEncoding          = errors.New("path is not valid UTF-8")
	ErrCompile               = errors.New("compile failed")
	ErrAssemblyDecode        = errors.New("assembly decode failed")
	ErrRun                   = errors.New("run failed")
	ErrTrap                  = errors.New("execution trapped")
	ErrForeignCapability     = errors.New("capability belongs to another module")
	ErrReleased              = errors.New("capability already released")
)
