package builtin

import (
	"llamachat/pkg/tool"
)

// RegisterAll registers the default tool set. The code interpreter runs
// python3; pass a different one with RegisterInterpreter.
func RegisterAll(r *tool.Registry) {
	RegisterInterpreter(r, NewCodeInterpreter(""))
	r.RegisterInstance(NewReadFile())
	r.RegisterInstance(NewFindFiles())
}

// RegisterInterpreter installs ci as the code_interpreter handler.
func RegisterInterpreter(r *tool.Registry, ci *CodeInterpreter) {
	r.RegisterInstance(ci)
}
