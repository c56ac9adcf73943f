// Package bus provides the command and query buses: named requests routed
// to exactly one handler, with optional validation ahead of the handler.
//
// # Dispatch
//
// Dispatch (or Ask on a query bus) looks the name up, runs the validator if
// one is registered and, when the validator reports no messages, runs the
// handler through the middleware chain. The handler's result is returned
// as-is.
//
//	cmds := bus.NewCommandBus()
//	_ = cmds.Register("song.add", addSong, bus.WithValidator(requireTitle))
//	res, err := cmds.Dispatch(ctx, "song.add", Song{Title: "Dreams"})
//
// Unknown names fail with *UnknownCommandError; rejected payloads fail with
// *ValidationError and never reach the handler.
//
// # Typed handles
//
// NewCommand and NewQuery declare handles that carry payload and result
// types. Handle/HandleQuery register against them, Send/Fetch dispatch
// through them, and DispatchJSON decodes raw bodies into the declared
// payload type.
//
// # Middleware
//
// Middleware wraps handlers after validation:
//
//	cmds.Use(bus.LogDispatch(logger, bus.KindCommand))
package bus
