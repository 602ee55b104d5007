package probe

import (
	"context"
	"os"
)

// bmpBackend talks to a Black Magic Probe, which runs the GDB server on
// the probe itself, so every operation is a GDB client session.
type bmpBackend struct{}

func (bmpBackend) Reset(ctx context.Context, env *Env) error {
	return bmpBatch(ctx, env, "", "bmp-reset")
}

func (bmpBackend) Flash(ctx context.Context, env *Env, firmware string) error {
	return bmpBatch(ctx, env, firmware, "bmp-flash")
}

func bmpBatch(ctx context.Context, env *Env, firmware, template string) error {
	path, err := writeScript(env.TempDir, template, scriptData{Endpoint: env.Config.Probe.BMP.GDBEndpoint})
	if err != nil {
		return err
	}
	defer os.Remove(path)
	return runTool(ctx, env, gdbBatchCommand(env, firmware, path))
}

func (bmpBackend) GDB(ctx context.Context, env *Env, req GDBRequest) error {
	sub, err := substitutePath(ctx, env)
	if err != nil {
		return err
	}
	script := scriptData{Endpoint: env.Config.Probe.BMP.GDBEndpoint, Reset: req.Reset, SubstitutePath: sub}
	return gdbSession(ctx, env, req, nil, script, "bmp-gdb")
}
