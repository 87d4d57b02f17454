// Package trace emits structured events about a dlvm run.
//
// Events describe coarse phases (load, run, render) and engine activity such
// as heap collections and hot landings reported by the tier. Instruction-level
// dumps are not traced here; the engine's debug verbosity prints those.
//
// Enable tracing from the command line:
//
//	dlvm --trace=- --trace-level=detail prog.dlb
//
// Tracers travel through context:
//
//	ctx = trace.WithTracer(ctx, tracer)
//	span := trace.Begin(trace.FromContext(ctx), trace.ScopePhase, "load", 0)
//	defer span.End("")
package trace
