package actions

import "io"

// BuiltinConfig carries the I/O and tuning for the built-in actions.
// Zero values use stdin/stdout and the per-action defaults.
type BuiltinConfig struct {
	In    io.Reader
	Out   io.Writer
	Shell ShellConfig
	HTTP  HTTPConfig
}

// RegisterBuiltins registers all built-in actions in the given registry.
func RegisterBuiltins(reg *Registry, cfg BuiltinConfig) error {
	assert, err := NewAssertAction()
	if err != nil {
		return err
	}

	all := []Action{
		NewEchoAction(cfg.Out),
		NewShellAction(cfg.Shell),
		&SleepAction{},
		NewHTTPAction(cfg.HTTP),
		NewManualApprovalAction(ApprovalConfig{In: cfg.In, Out: cfg.Out}),
		&SetVariableAction{},
		assert,
	}
	all = append(all, ExprActions()...)

	for _, a := range all {
		if err := reg.Register(a); err != nil {
			return err
		}
	}
	return nil
}
